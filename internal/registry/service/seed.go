package service

import (
	"context"
	"fmt"
	"os"
	"poolsched/pkg/interval"
	"poolsched/pkg/model"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedFile is the root of a registry seed document. Values may reference
// environment variables as ${NAME}.
type SeedFile struct {
	Pools []SeedPool `yaml:"pools"`
}

type SeedPool struct {
	model.Pool `yaml:",inline"`

	Lanes    []model.Lane   `yaml:"lanes"`
	Lockers  []model.Locker `yaml:"lockers"`
	Closures []SeedClosure  `yaml:"closures"`
}

type SeedClosure struct {
	ID     string `yaml:"id"`
	Dates  string `yaml:"dates"` // "12/24/2031 - 12/27/2031"
	Reason string `yaml:"reason"`
}

type SeedResult struct {
	Pools    int
	Lanes    int
	Lockers  int
	Closures int
	Skipped  int
}

// LoadSeedFile reads and parses a seed document.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	if err := seed.Validate(); err != nil {
		return nil, fmt.Errorf("validate seed file: %w", err)
	}
	return &seed, nil
}

// Validate checks the document shape. Field rules are applied later by the
// registry validator.
func (s *SeedFile) Validate() error {
	if len(s.Pools) == 0 {
		return fmt.Errorf("no pools defined")
	}
	names := make(map[string]bool, len(s.Pools))
	for i, p := range s.Pools {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("pool[%d]: name is required", i)
		}
		if names[name] {
			return fmt.Errorf("pool[%d]: duplicate name %q", i, name)
		}
		names[name] = true
		for j, c := range p.Closures {
			if strings.TrimSpace(c.Dates) == "" {
				return fmt.Errorf("pool %q closure[%d]: dates are required", name, j)
			}
		}
	}
	return nil
}

// Seed loads path and creates its pools with their lanes, lockers and
// closures. A pool whose ID is already registered is skipped along with its
// children.
func (s *registryService) Seed(ctx context.Context, path string) (*SeedResult, error) {
	seed, err := LoadSeedFile(path)
	if err != nil {
		s.cfg.Log.Error("Failed to load seed file", "path", path, "error", err)
		return nil, err
	}

	res := &SeedResult{}
	for _, sp := range seed.Pools {
		if sp.ID != "" {
			if _, err := s.repo.FindPool(ctx, sp.ID); err == nil {
				s.cfg.Log.Info("Pool already registered, skipping", "id", sp.ID, "name", sp.Name)
				res.Skipped++
				continue
			}
		}
		if err := s.seedPool(ctx, sp, res); err != nil {
			return res, err
		}
	}

	s.cfg.Log.Info("Registry seeded",
		"pools", res.Pools,
		"lanes", res.Lanes,
		"lockers", res.Lockers,
		"closures", res.Closures,
		"skipped", res.Skipped,
	)
	return res, nil
}

func (s *registryService) seedPool(ctx context.Context, sp SeedPool, res *SeedResult) error {
	return s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		pool := sp.Pool
		if err := s.CreatePool(ctx, &pool); err != nil {
			return err
		}
		res.Pools++

		for _, l := range sp.Lanes {
			lane := l
			lane.PoolID = pool.ID
			if err := s.CreateLane(ctx, &lane); err != nil {
				return err
			}
			res.Lanes++
		}
		for _, l := range sp.Lockers {
			locker := l
			locker.PoolID = pool.ID
			if err := s.CreateLocker(ctx, &locker); err != nil {
				return err
			}
			res.Lockers++
		}
		for _, c := range sp.Closures {
			dates, err := interval.ParseDateRange(c.Dates, s.cfg.Location)
			if err != nil {
				return fmt.Errorf("pool %q closure %q: %w", pool.Name, c.Reason, err)
			}
			closure := &model.Closure{ID: c.ID, PoolID: pool.ID, Dates: dates, Reason: c.Reason}
			if err := s.CreateClosure(ctx, closure); err != nil {
				return err
			}
			res.Closures++
		}
		return nil
	})
}
