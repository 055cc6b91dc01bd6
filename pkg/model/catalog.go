package model

import (
	"fmt"
	"time"

	apperrors "studiobook/pkg/errors"
)

type StudioKind string

const (
	SelfPhoto StudioKind = "self_photo"
	Regular   StudioKind = "regular"
)

func (k StudioKind) Valid() bool {
	return k == SelfPhoto || k == Regular
}

type Studio struct {
	ID        string     `json:"id,omitempty" bson:"_id,omitempty"`
	Name      string     `json:"name" bson:"name"`
	Kind      StudioKind `json:"kind" bson:"kind"`
	Active    bool       `json:"active" bson:"active"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
}

// PackageCategory partitions a Regular studio into independently schedulable lines.
type PackageCategory struct {
	ID       string `json:"id,omitempty" bson:"_id,omitempty"`
	StudioID string `json:"studio_id" bson:"studio_id"`
	Name     string `json:"name" bson:"name"`
	Active   bool   `json:"active" bson:"active"`
}

type Package struct {
	ID                  string `json:"id,omitempty" bson:"_id,omitempty"`
	StudioID            string `json:"studio_id" bson:"studio_id"`
	CategoryID          string `json:"category_id,omitempty" bson:"category_id,omitempty"`
	Name                string `json:"name" bson:"name"`
	BasePrice           int64  `json:"base_price" bson:"base_price"`
	BaseDurationMinutes int    `json:"base_duration_minutes" bson:"base_duration_minutes"`
	Active              bool   `json:"active" bson:"active"`
}

type AdditionalService struct {
	ID          string `json:"id,omitempty" bson:"_id,omitempty"`
	StudioID    string `json:"studio_id" bson:"studio_id"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	UnitPrice   int64  `json:"unit_price" bson:"unit_price"`
	// PerUnit services take a quantity; the rest are toggles billed once.
	PerUnit bool `json:"per_unit" bson:"per_unit"`
	Active  bool `json:"active" bson:"active"`
}

// Placement says where a reservation lives. SelfPhoto studios are scheduled as
// a whole; Regular studios are scheduled per package category. The two
// variants are the only implementations.
type Placement interface {
	StudioID() string
	CategoryID() string
	Kind() StudioKind
	placement()
}

type SelfPhotoPlacement struct {
	Studio string
}

func (p SelfPhotoPlacement) StudioID() string   { return p.Studio }
func (p SelfPhotoPlacement) CategoryID() string { return "" }
func (p SelfPhotoPlacement) Kind() StudioKind   { return SelfPhoto }
func (SelfPhotoPlacement) placement()           {}

type RegularPlacement struct {
	Studio   string
	Category string
}

func (p RegularPlacement) StudioID() string   { return p.Studio }
func (p RegularPlacement) CategoryID() string { return p.Category }
func (p RegularPlacement) Kind() StudioKind   { return Regular }
func (RegularPlacement) placement()           {}

// Place resolves the placement of a package inside its studio, rejecting a
// category on SelfPhoto studios and requiring one on Regular studios.
func Place(studio *Studio, pkg *Package) (Placement, error) {
	if pkg.StudioID != studio.ID {
		return nil, apperrors.Validation("package does not belong to studio", map[string]any{
			"studio_id":  studio.ID,
			"package_id": pkg.ID,
		})
	}
	switch studio.Kind {
	case SelfPhoto:
		if pkg.CategoryID != "" {
			return nil, apperrors.Validation("self-photo packages cannot carry a category", map[string]any{
				"package_id":  pkg.ID,
				"category_id": pkg.CategoryID,
			})
		}
		return SelfPhotoPlacement{Studio: studio.ID}, nil
	case Regular:
		if pkg.CategoryID == "" {
			return nil, apperrors.Validation("regular studio packages require a category", map[string]any{
				"package_id": pkg.ID,
			})
		}
		return RegularPlacement{Studio: studio.ID, Category: pkg.CategoryID}, nil
	default:
		return nil, apperrors.Validation(fmt.Sprintf("unknown studio kind %q", studio.Kind), nil)
	}
}
