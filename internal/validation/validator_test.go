// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package validation

import (
	"strings"
	"testing"
)

type dataviewParams struct {
	BBox string `validate:"omitempty,bbox"`
	Bins int    `validate:"omitempty,min=1,max=1024"`
}

func TestValidateStructBBox(t *testing.T) {
	tests := []struct {
		name    string
		bbox    string
		wantErr bool
	}{
		{"empty is allowed", "", false},
		{"valid box", "-20,0,45,60", false},
		{"valid box with spaces", " -20, 0, 45, 60 ", false},
		{"world box", "-180,-90,180,90", false},
		{"too few parts", "-20,0,45", true},
		{"too many parts", "-20,0,45,60,5", true},
		{"not numeric", "west,south,east,north", true},
		{"longitude out of range", "-200,0,45,60", true},
		{"latitude out of range", "-20,-95,45,60", true},
		{"south above north", "-20,60,45,0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&dataviewParams{BBox: tt.bbox, Bins: 10})
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStruct(bbox=%q) error = %v, wantErr = %v", tt.bbox, err, tt.wantErr)
			}
		})
	}
}

func TestValidateStructBins(t *testing.T) {
	if err := ValidateStruct(&dataviewParams{Bins: 2048}); err == nil {
		t.Error("expected error for bins above maximum")
	}
	if err := ValidateStruct(&dataviewParams{Bins: 16}); err != nil {
		t.Errorf("unexpected error for valid bins: %v", err)
	}
}

func TestToAPIError(t *testing.T) {
	err := ValidateStruct(&dataviewParams{BBox: "bad", Bins: 5000})
	if err == nil {
		t.Fatal("expected validation error")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR code, got %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "BBox") {
		t.Errorf("expected message to mention BBox, got %q", apiErr.Message)
	}
	if len(err.Errors()) != 2 {
		t.Errorf("expected 2 field errors, got %d", len(err.Errors()))
	}
}
