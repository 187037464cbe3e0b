package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/bohumlab/commission-gateway/common/logger"
)

// ErrEmptyDataset is returned when the source file parses but contains no
// usable product rows. The process must refuse to serve in that case.
var ErrEmptyDataset = errors.New("dataset contains no products")

// Load reads and validates the normalized dataset file. Products without any
// rate key are dropped; structural problems are errors, not warnings, so a
// corrupt file can never make it into the serving path.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return Parse(data)
}

// Parse builds a Dataset from raw JSON bytes.
func Parse(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	if ds.Companies == nil {
		return nil, errors.New("dataset: missing companies map")
	}

	dropped := 0
	for name, company := range ds.Companies {
		if company == nil {
			return nil, fmt.Errorf("dataset: company %q has no record", name)
		}
		if company.CompanyName == "" {
			company.CompanyName = name
		}
		kept := company.Products[:0]
		for _, p := range company.Products {
			if p == nil {
				continue
			}
			if len(p.BaseCommissionRates) == 0 {
				dropped++
				continue
			}
			if p.Metadata.ProductName == "" {
				return nil, fmt.Errorf("dataset: company %q row %d has no product name", name, p.RowNumber)
			}
			if err := checkTotalAlias(name, p); err != nil {
				return nil, err
			}
			kept = append(kept, p)
		}
		company.Products = kept
	}
	if dropped > 0 {
		logger.Warnf("dataset: dropped %d product rows without commission rates", dropped)
	}
	if ds.NumProducts() == 0 {
		return nil, ErrEmptyDataset
	}
	return &ds, nil
}

// checkTotalAlias enforces that FC계 and its Total alias, when both present,
// carry the same value. The extraction pass writes them from one source cell,
// so a mismatch means the file was edited by hand or corrupted.
func checkTotalAlias(company string, p *ProductRecord) error {
	fc, hasFC := p.BaseCommissionRates[FCTotalKey]
	total, hasTotal := p.BaseCommissionRates[TotalKey]
	if hasFC && hasTotal && fc != total {
		return fmt.Errorf("dataset: company %q row %d: %s=%v and %s=%v disagree",
			company, p.RowNumber, FCTotalKey, fc, TotalKey, total)
	}
	return nil
}

// Store publishes a Dataset to concurrent readers. Reload builds the new
// dataset completely off to the side and swaps the pointer, so an in-flight
// request never observes a partially loaded table.
type Store struct {
	path    string
	current atomic.Pointer[Dataset]
}

// NewStore loads path and wraps the result. A load failure here is fatal to
// the caller; the process should not start without a dataset.
func NewStore(path string) (*Store, error) {
	ds, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.current.Store(ds)
	logger.Infof("dataset: loaded %d companies, %d products from %s",
		len(ds.Companies), ds.NumProducts(), path)
	return s, nil
}

// Current returns the live dataset snapshot.
func (s *Store) Current() *Dataset {
	return s.current.Load()
}

// Reload re-reads the source file. On failure the previous dataset stays
// published and the error is returned to the administrative caller.
func (s *Store) Reload() error {
	ds, err := Load(s.path)
	if err != nil {
		return fmt.Errorf("dataset reload: %w", err)
	}
	s.current.Store(ds)
	logger.Infof("dataset: reloaded %d companies, %d products", len(ds.Companies), ds.NumProducts())
	return nil
}
