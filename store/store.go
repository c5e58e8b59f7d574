package store

import (
	"encoding/json"
	"fmt"

	"github.com/vitwit/x402pay/types"
)

const (
	identityKey    = "identity"
	mintInfoPrefix = "mint_info/"
	resourcePrefix = "resource/"
)

// SavedResource is an x402 resource a client has paid for or subscribed to.
type SavedResource struct {
	URI string `json:"uri"`
	// Transaction is the X-PAYMENT header that paid for the resource, if any.
	Transaction string              `json:"transaction,omitempty"`
	Info        *types.ResourceInfo `json:"info,omitempty"`
}

// Store is a typed view over a KV.
type Store struct {
	kv KV
}

func New(kv KV) *Store {
	return &Store{kv: kv}
}

// SetIdentity records the base58 address of the local payer.
func (s *Store) SetIdentity(address string) error {
	return s.put(identityKey, address)
}

// Identity returns the stored payer address, or "" when none is set.
func (s *Store) Identity() (string, error) {
	var address string
	if _, err := s.get(identityKey, &address); err != nil {
		return "", err
	}
	return address, nil
}

// SaveMintInfo caches info for mint on network.
func (s *Store) SaveMintInfo(network types.Network, mint string, info *types.MintInfo) error {
	return s.put(mintInfoKey(network, mint), info)
}

// MintInfo returns the cached info of mint on network.
func (s *Store) MintInfo(network types.Network, mint string) (*types.MintInfo, bool, error) {
	var info types.MintInfo
	ok, err := s.get(mintInfoKey(network, mint), &info)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &info, true, nil
}

// SaveResource stores r under its URI, replacing an earlier entry.
func (s *Store) SaveResource(r *SavedResource) error {
	return s.put(resourcePrefix+r.URI, r)
}

// DeleteResource forgets the resource saved under uri.
func (s *Store) DeleteResource(uri string) error {
	if err := s.kv.Delete(resourcePrefix + uri); err != nil {
		return storageError("failed to delete "+uri, err)
	}
	return nil
}

// Resources lists saved resources ordered by URI.
func (s *Store) Resources() ([]SavedResource, error) {
	keys, err := s.kv.Keys(resourcePrefix)
	if err != nil {
		return nil, storageError("failed to list resources", err)
	}

	out := make([]SavedResource, 0, len(keys))
	for _, k := range keys {
		var r SavedResource
		ok, err := s.get(k, &r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func mintInfoKey(network types.Network, mint string) string {
	return fmt.Sprintf("%s%s/%s", mintInfoPrefix, network, mint)
}

func (s *Store) put(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return storageError("failed to encode "+key, err)
	}
	if err := s.kv.Set(key, b); err != nil {
		return storageError("failed to write "+key, err)
	}
	return nil
}

func (s *Store) get(key string, v any) (bool, error) {
	b, ok, err := s.kv.Get(key)
	if err != nil {
		return false, storageError("failed to read "+key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, storageError("failed to decode "+key, err)
	}
	return true, nil
}

func storageError(msg string, err error) error {
	return &types.X402Error{
		Kind:    types.KindDownstream,
		Code:    types.ErrStorageError,
		Message: msg,
		Err:     err,
	}
}
