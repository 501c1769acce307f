package authorize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/program"
)

// FeeSchedule publishes the base fee of each function.
type FeeSchedule interface {
	BaseFee(loc program.Locator) (uint64, error)
}

// StaticFeeSchedule is a fixed table keyed by "program/function".
type StaticFeeSchedule map[string]uint64

// DefaultFeeSchedule returns the base fees of the credits program.
func DefaultFeeSchedule() StaticFeeSchedule {
	return StaticFeeSchedule{
		"credits.vy/transfer_public":            51060,
		"credits.vy/transfer_private_to_public": 300000,
	}
}

// BaseFee implements FeeSchedule.
func (s StaticFeeSchedule) BaseFee(loc program.Locator) (uint64, error) {
	fee, ok := s[loc.String()]
	if !ok {
		return 0, errs.Newf(errs.ParseError, "no base fee published for %s", loc)
	}
	return fee, nil
}

type feeScheduleFile struct {
	BaseFees map[string]uint64 `yaml:"base_fees"`
}

// ParseFeeSchedule parses a YAML fee table:
//
//	base_fees:
//	  credits.vy/transfer_public: 51060
func ParseFeeSchedule(data []byte) (StaticFeeSchedule, error) {
	var f feeScheduleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errs.Wrap(errs.ParseError, "fee schedule", err)
	}
	out := make(StaticFeeSchedule, len(f.BaseFees))
	for key, fee := range f.BaseFees {
		loc, err := program.ParseLocator(key)
		if err != nil {
			return nil, fmt.Errorf("fee schedule entry %q: %w", key, err)
		}
		out[loc.String()] = fee
	}
	return out, nil
}

// LoadFeeSchedule reads a YAML fee table from path.
func LoadFeeSchedule(path string) (StaticFeeSchedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fee schedule: %w", err)
	}
	return ParseFeeSchedule(data)
}
