// Package registry persists contract deployments per network in a bbolt
// file, so later commands can find the most recent deployment of a contract.
package registry

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.etcd.io/bbolt"
)

// ErrNotFound is returned when a network holds no deployment of a contract.
var ErrNotFound = errors.New("registry: no deployment found")

// Record is one deployment.
type Record struct {
	Network    string         `json:"network"`
	Contract   string         `json:"contract"`
	Address    common.Address `json:"address"`
	TxHash     common.Hash    `json:"tx_hash"`
	Block      uint64         `json:"block"`
	Deployer   common.Address `json:"deployer"`
	DeployedAt time.Time      `json:"deployed_at"`
}

// Registry is a bbolt backed deployment store. Buckets are laid out as
// network/contract/seq -> Record, seq being increasing per contract.
type Registry struct {
	db *bbolt.DB
}

// Open opens (or creates) the registry file at path.
func Open(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("registry path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}

	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Add appends a deployment record.
func (r *Registry) Add(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.Network == "" || rec.Contract == "" {
		return fmt.Errorf("record network and contract are required")
	}
	if rec.DeployedAt.IsZero() {
		rec.DeployedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		nb, err := tx.CreateBucketIfNotExists([]byte(rec.Network))
		if err != nil {
			return fmt.Errorf("create network bucket: %w", err)
		}
		cb, err := nb.CreateBucketIfNotExists([]byte(rec.Contract))
		if err != nil {
			return fmt.Errorf("create contract bucket: %w", err)
		}
		seq, err := cb.NextSequence()
		if err != nil {
			return err
		}
		return cb.Put(seqKey(seq), payload)
	})
}

// Latest returns the most recent deployment of contract on network.
func (r *Registry) Latest(ctx context.Context, network, contract string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	var rec Record
	err := r.db.View(func(tx *bbolt.Tx) error {
		cb := contractBucket(tx, network, contract)
		if cb == nil {
			return ErrNotFound
		}
		_, payload := cb.Cursor().Last()
		if payload == nil {
			return ErrNotFound
		}
		return json.Unmarshal(payload, &rec)
	})
	if errors.Is(err, ErrNotFound) {
		return Record{}, fmt.Errorf("%w: %s on %s", ErrNotFound, contract, network)
	}
	if err != nil {
		return Record{}, fmt.Errorf("read record: %w", err)
	}
	return rec, nil
}

// Count returns how many times contract was deployed on network.
func (r *Registry) Count(ctx context.Context, network, contract string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int
	err := r.db.View(func(tx *bbolt.Tx) error {
		if cb := contractBucket(tx, network, contract); cb != nil {
			n = cb.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// List returns every record on network, grouped by contract name and
// ordered oldest first within a contract.
func (r *Registry) List(ctx context.Context, network string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Record
	err := r.db.View(func(tx *bbolt.Tx) error {
		nb := tx.Bucket([]byte(network))
		if nb == nil {
			return nil
		}
		return nb.ForEachBucket(func(name []byte) error {
			return nb.Bucket(name).ForEach(func(_, v []byte) error {
				var rec Record
				if err := json.Unmarshal(v, &rec); err != nil {
					return fmt.Errorf("unmarshal %s record: %w", name, err)
				}
				out = append(out, rec)
				return nil
			})
		})
	})
	return out, err
}

// Networks returns the networks that hold at least one record.
func (r *Registry) Networks(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []string
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			out = append(out, string(name))
			return nil
		})
	})
	return out, err
}

// Reset drops every record on network. Local chains are thrown away between
// sessions, so their deployments go stale.
func (r *Registry) Reset(ctx context.Context, network string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket([]byte(network))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

func contractBucket(tx *bbolt.Tx, network, contract string) *bbolt.Bucket {
	nb := tx.Bucket([]byte(network))
	if nb == nil {
		return nil
	}
	return nb.Bucket([]byte(contract))
}

func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
