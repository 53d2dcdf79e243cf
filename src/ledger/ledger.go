package ledger

import (
	"fmt"
	"hash/fnv"
	"sync"
)

// shardCount is the number of independently locked partitions of the account
// map. It must be a power of two.
const shardCount = 32

// Account holds the balance and the last applied transfer sequence of an
// identity. Identities that were never touched by a transfer are logically
// {0, 0}.
type Account struct {
	Balance      uint64
	LastSequence uint64
}

type shard struct {
	sync.RWMutex
	accounts map[string]*Account
}

// Ledger is the authoritative mapping from account identity to Account. An
// identity is the hex-encoded public key of the account holder.
//
// The map is partitioned into shards, each with its own RWMutex. A transfer
// locks only the sender's and recipient's shards, in ascending shard order, so
// transfers touching disjoint shards proceed concurrently and two transfers
// can never deadlock. Within a shard lock, a transfer's mutations are applied
// as a single indivisible step; readers observe either the full pre-state or
// the full post-state.
type Ledger struct {
	shards [shardCount]shard
}

// NewLedger instantiates an empty Ledger.
func NewLedger() *Ledger {
	l := &Ledger{}
	for i := range l.shards {
		l.shards[i].accounts = make(map[string]*Account)
	}
	return l
}

func shardIndex(identity string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return h.Sum32() & (shardCount - 1)
}

// Transfer atomically moves amount from sender to recipient.
//
// The sequence must be exactly the sender's last applied sequence plus one;
// any other value is rejected with SequenceMismatch. The amount must not
// exceed the sender's balance; otherwise the transfer is rejected with
// InsufficientBalance. A rejected transfer leaves the ledger untouched.
//
// sender == recipient is a valid degenerate case: the sequence advances and
// the balance is unchanged.
func (l *Ledger) Transfer(sender string, sequence uint64, recipient string, amount uint64) error {
	si := shardIndex(sender)
	ri := shardIndex(recipient)

	// Lock shards in ascending order.
	lo, hi := si, ri
	if lo > hi {
		lo, hi = hi, lo
	}
	l.shards[lo].Lock()
	defer l.shards[lo].Unlock()
	if hi != lo {
		l.shards[hi].Lock()
		defer l.shards[hi].Unlock()
	}

	senderAccount, ok := l.shards[si].accounts[sender]
	if !ok {
		senderAccount = &Account{}
	}

	if sequence != senderAccount.LastSequence+1 {
		return NewTransferErr(SequenceMismatch, sender,
			fmt.Sprintf("got %d, expected %d", sequence, senderAccount.LastSequence+1))
	}

	if amount > senderAccount.Balance {
		return NewTransferErr(InsufficientBalance, sender,
			fmt.Sprintf("got %d, max %d", amount, senderAccount.Balance))
	}

	if sender == recipient {
		senderAccount.LastSequence = sequence
		l.shards[si].accounts[sender] = senderAccount
		return nil
	}

	recipientAccount, ok := l.shards[ri].accounts[recipient]
	if !ok {
		recipientAccount = &Account{}
	}

	senderAccount.Balance -= amount
	senderAccount.LastSequence = sequence
	recipientAccount.Balance += amount

	l.shards[si].accounts[sender] = senderAccount
	l.shards[ri].accounts[recipient] = recipientAccount

	return nil
}

// Balance returns the balance of an identity, 0 if unknown.
func (l *Ledger) Balance(identity string) uint64 {
	i := shardIndex(identity)

	l.shards[i].RLock()
	defer l.shards[i].RUnlock()

	account, ok := l.shards[i].accounts[identity]
	if !ok {
		return 0
	}
	return account.Balance
}

// LastSequence returns the last applied transfer sequence of an identity, 0 if
// unknown.
func (l *Ledger) LastSequence(identity string) uint64 {
	i := shardIndex(identity)

	l.shards[i].RLock()
	defer l.shards[i].RUnlock()

	account, ok := l.shards[i].accounts[identity]
	if !ok {
		return 0
	}
	return account.LastSequence
}

// Seed credits an identity with an initial balance. This is the external
// seeding hook; there is no minting operation, so all funds enter the system
// here, before the node starts applying transfers.
func (l *Ledger) Seed(identity string, balance uint64) {
	i := shardIndex(identity)

	l.shards[i].Lock()
	defer l.shards[i].Unlock()

	account, ok := l.shards[i].accounts[identity]
	if !ok {
		account = &Account{}
		l.shards[i].accounts[identity] = account
	}
	account.Balance += balance
}

// TotalSupply returns the sum of all balances. Successful transfers conserve
// it; only Seed changes it. Shards are read one at a time, so a transfer
// racing across two shards may be half counted; the result is exact when no
// transfer is in flight.
func (l *Ledger) TotalSupply() uint64 {
	total := uint64(0)
	for i := range l.shards {
		l.shards[i].RLock()
		for _, account := range l.shards[i].accounts {
			total += account.Balance
		}
		l.shards[i].RUnlock()
	}
	return total
}
