package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"io/ioutil"
	"os"
	"path"
	"strings"
	"sync"
)

// SimpleKeyfile reads and writes a raw hex-encoded private key from/to an
// unencrypted file.
type SimpleKeyfile struct {
	l       sync.Mutex
	keyfile string
}

// NewSimpleKeyfile instantiates a SimpleKeyfile with an underlying file.
func NewSimpleKeyfile(keyfile string) *SimpleKeyfile {
	return &SimpleKeyfile{
		keyfile: keyfile,
	}
}

// ReadKey parses the private key from the underlying file.
func (k *SimpleKeyfile) ReadKey() (*ecdsa.PrivateKey, error) {
	k.l.Lock()
	defer k.l.Unlock()

	buf, err := ioutil.ReadFile(k.keyfile)
	if err != nil {
		return nil, err
	}

	rawKey := strings.TrimSpace(string(buf))

	d, err := hex.DecodeString(rawKey)
	if err != nil {
		return nil, err
	}

	return ParsePrivateKey(d)
}

// WriteKey dumps the private key to the underlying file, creating parent
// directories if necessary. The file is only readable by the user.
func (k *SimpleKeyfile) WriteKey(key *ecdsa.PrivateKey) error {
	k.l.Lock()
	defer k.l.Unlock()

	if err := os.MkdirAll(path.Dir(k.keyfile), 0700); err != nil {
		return err
	}

	raw := hex.EncodeToString(DumpPrivateKey(key))

	return ioutil.WriteFile(k.keyfile, []byte(raw), 0600)
}
