package transfer

import (
	"bytes"
	"fmt"

	"github.com/at2-network/at2-node/src/common"
	"github.com/at2-network/at2-node/src/crypto"
	"github.com/at2-network/at2-node/src/crypto/keys"
	"github.com/ugorji/go/codec"

	"crypto/ecdsa"
)

// Payload is a signed transfer request. It is immutable once signed: the
// sender commits to moving Amount to Recipient as its Sequence-th transfer.
//
// Sender and Recipient are hex-encoded public keys. The Signature covers
// (Sequence, Recipient, Amount) under the Sender's key.
type Payload struct {
	Sender    string
	Sequence  uint64
	Recipient string
	Amount    uint64
	Signature string
}

// signedFields is the portion of a Payload covered by the signature.
type signedFields struct {
	Sequence  uint64
	Recipient string
	Amount    uint64
}

// Marshal returns the canonical JSON encoding of the payload.
func (p *Payload) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(p); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal parses a payload from its canonical JSON encoding.
func (p *Payload) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(p)
}

// Hash returns the hex-encoded SHA256 of the canonical payload encoding. It
// identifies the payload in echo and ready votes.
func (p *Payload) Hash() (string, error) {
	data, err := p.Marshal()
	if err != nil {
		return "", err
	}
	return common.EncodeToString(crypto.SHA256(data)), nil
}

func (p *Payload) signingBytes() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(signedFields{
		Sequence:  p.Sequence,
		Recipient: p.Recipient,
		Amount:    p.Amount,
	}); err != nil {
		return nil, err
	}

	return crypto.SHA256(b.Bytes()), nil
}

// Sign sets the payload's Sender and Signature from the given private key.
func (p *Payload) Sign(priv *ecdsa.PrivateKey) error {
	p.Sender = keys.PublicKeyHex(&priv.PublicKey)

	data, err := p.signingBytes()
	if err != nil {
		return err
	}

	r, s, err := keys.Sign(priv, data)
	if err != nil {
		return err
	}

	p.Signature = keys.EncodeSignature(r, s)

	return nil
}

// Verify checks the payload's signature against its Sender key.
func (p *Payload) Verify() (bool, error) {
	pubBytes, err := common.DecodeFromString(p.Sender)
	if err != nil {
		return false, fmt.Errorf("decode sender: %v", err)
	}

	pubKey := keys.ToPublicKey(pubBytes)
	if pubKey == nil {
		return false, fmt.Errorf("sender %s is not a point on the curve", p.Sender)
	}

	data, err := p.signingBytes()
	if err != nil {
		return false, err
	}

	r, s, err := keys.DecodeSignature(p.Signature)
	if err != nil {
		return false, fmt.Errorf("decode signature: %v", err)
	}

	return keys.Verify(pubKey, data, r, s), nil
}
