package peers

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sync"
)

const jsonPeerPath = "peers.json"

// JSONPeers provides peer-set persistence on disk in the form of a JSON file,
// so that human operators can manipulate the file.
type JSONPeers struct {
	l    sync.Mutex
	path string
}

// NewJSONPeers creates a JSONPeers store under the given base directory.
func NewJSONPeers(base string) *JSONPeers {
	return &JSONPeers{
		path: filepath.Join(base, jsonPeerPath),
	}
}

// Peers reads the peer set from the file.
func (j *JSONPeers) Peers() (*Peers, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	if len(buf) == 0 {
		return nil, fmt.Errorf("peer store %s is empty", j.path)
	}

	var peerSlice []*Peer
	if err := json.Unmarshal(buf, &peerSlice); err != nil {
		return nil, err
	}

	return NewPeersFromSlice(peerSlice), nil
}

// SetPeers writes the peer set to the file.
func (j *JSONPeers) SetPeers(peerSlice []*Peer) error {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := json.MarshalIndent(peerSlice, "", "  ")
	if err != nil {
		return err
	}

	return ioutil.WriteFile(j.path, buf, 0644)
}
