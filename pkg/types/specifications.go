package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lensportal/lensportal-backend/pkg/enums"
)

// SpecificationKind tags which variant a product's specifications hold.
type SpecificationKind string

const (
	SpecKindStockLens    SpecificationKind = "stock_lens"
	SpecKindFinishedLens SpecificationKind = "finished_lens"
	SpecKindLaboratory   SpecificationKind = "laboratory"
)

// KindForFamily returns the only specification kind a category family accepts.
func KindForFamily(family enums.CategoryFamily) SpecificationKind {
	switch family {
	case enums.CategoryFamilyStock:
		return SpecKindStockLens
	case enums.CategoryFamilyFinished:
		return SpecKindFinishedLens
	case enums.CategoryFamilyLaboratory:
		return SpecKindLaboratory
	default:
		return ""
	}
}

type StockLensSpec struct {
	Material    string   `json:"material"`
	Index       float64  `json:"index"`
	SphereMin   float64  `json:"sphere_min"`
	SphereMax   float64  `json:"sphere_max"`
	CylinderMin float64  `json:"cylinder_min"`
	CylinderMax float64  `json:"cylinder_max"`
	DiameterMM  float64  `json:"diameter_mm"`
	Coatings    []string `json:"coatings,omitempty"`
}

type FinishedLensSpec struct {
	Material string   `json:"material"`
	Index    float64  `json:"index"`
	Sphere   float64  `json:"sphere"`
	Cylinder float64  `json:"cylinder"`
	Axis     int      `json:"axis"`
	AddPower float64  `json:"add_power"`
	Coatings []string `json:"coatings,omitempty"`
}

type LaboratorySpec struct {
	Service        string `json:"service"`
	TurnaroundDays int    `json:"turnaround_days"`
}

// Specifications is a tagged variant stored as jsonb. The zero value means the
// product has no specifications and persists as NULL.
type Specifications struct {
	Kind         SpecificationKind
	StockLens    *StockLensSpec
	FinishedLens *FinishedLensSpec
	Laboratory   *LaboratorySpec
}

func (s Specifications) IsZero() bool {
	return s.Kind == ""
}

// Validate checks the active variant's ranges.
func (s Specifications) Validate() error {
	switch s.Kind {
	case "":
		return nil
	case SpecKindStockLens:
		spec := s.StockLens
		if spec == nil {
			return fmt.Errorf("specifications: stock_lens body missing")
		}
		if err := validateMaterial(spec.Material, spec.Index); err != nil {
			return err
		}
		if spec.SphereMin > spec.SphereMax {
			return fmt.Errorf("specifications: sphere_min must not exceed sphere_max")
		}
		if spec.CylinderMin > spec.CylinderMax {
			return fmt.Errorf("specifications: cylinder_min must not exceed cylinder_max")
		}
		if spec.DiameterMM <= 0 {
			return fmt.Errorf("specifications: diameter_mm must be positive")
		}
	case SpecKindFinishedLens:
		spec := s.FinishedLens
		if spec == nil {
			return fmt.Errorf("specifications: finished_lens body missing")
		}
		if err := validateMaterial(spec.Material, spec.Index); err != nil {
			return err
		}
		if spec.Axis < 0 || spec.Axis > 180 {
			return fmt.Errorf("specifications: axis must be between 0 and 180")
		}
		if spec.AddPower < 0 {
			return fmt.Errorf("specifications: add_power must not be negative")
		}
	case SpecKindLaboratory:
		spec := s.Laboratory
		if spec == nil {
			return fmt.Errorf("specifications: laboratory body missing")
		}
		if strings.TrimSpace(spec.Service) == "" {
			return fmt.Errorf("specifications: service is required")
		}
		if spec.TurnaroundDays <= 0 {
			return fmt.Errorf("specifications: turnaround_days must be positive")
		}
	default:
		return fmt.Errorf("specifications: unknown kind %q", s.Kind)
	}
	return nil
}

// MatchesFamily reports whether the variant may be attached to a product in the
// given category family. Empty specifications match every family.
func (s Specifications) MatchesFamily(family enums.CategoryFamily) bool {
	return s.IsZero() || s.Kind == KindForFamily(family)
}

func validateMaterial(material string, index float64) error {
	if strings.TrimSpace(material) == "" {
		return fmt.Errorf("specifications: material is required")
	}
	if index < 1.4 || index > 1.9 {
		return fmt.Errorf("specifications: index must be between 1.4 and 1.9")
	}
	return nil
}

func (s Specifications) MarshalJSON() ([]byte, error) {
	var body any
	switch s.Kind {
	case "":
		return []byte("null"), nil
	case SpecKindStockLens:
		body = s.StockLens
	case SpecKindFinishedLens:
		body = s.FinishedLens
	case SpecKindLaboratory:
		body = s.Laboratory
	default:
		return nil, fmt.Errorf("specifications: unknown kind %q", s.Kind)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	kind, _ := json.Marshal(s.Kind)
	fields["kind"] = kind
	return json.Marshal(fields)
}

func (s *Specifications) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = Specifications{}
		return nil
	}

	var probe struct {
		Kind SpecificationKind `json:"kind"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return fmt.Errorf("specifications: %w", err)
	}

	out := Specifications{Kind: probe.Kind}
	var err error
	switch probe.Kind {
	case SpecKindStockLens:
		out.StockLens = &StockLensSpec{}
		err = decodeVariant(trimmed, out.StockLens)
	case SpecKindFinishedLens:
		out.FinishedLens = &FinishedLensSpec{}
		err = decodeVariant(trimmed, out.FinishedLens)
	case SpecKindLaboratory:
		out.Laboratory = &LaboratorySpec{}
		err = decodeVariant(trimmed, out.Laboratory)
	case "":
		return fmt.Errorf("specifications: kind is required")
	default:
		return fmt.Errorf("specifications: unknown kind %q", probe.Kind)
	}
	if err != nil {
		return err
	}
	*s = out
	return nil
}

// decodeVariant rejects keys the variant does not declare. The kind tag is
// stripped first since the variant structs do not carry it.
func decodeVariant(data []byte, dst any) error {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("specifications: %w", err)
	}
	delete(fields, "kind")
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("specifications: %w", err)
	}
	return nil
}

// Value stores the variant as a JSON document, or NULL when empty.
func (s Specifications) Value() (driver.Value, error) {
	if s.IsZero() {
		return nil, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes a jsonb column.
func (s *Specifications) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = Specifications{}
		return nil
	case []byte:
		return s.UnmarshalJSON(v)
	case string:
		return s.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("specifications: unsupported scan type %T", value)
	}
}
