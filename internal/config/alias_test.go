package config

import "testing"

func TestValidateRejectsUndeclaredMultiTierMember(t *testing.T) {
	ac := &AliasConfig{
		Caches: []CacheXML{
			{Type: "multitier", Name: "mt", Members: []MultiTierMemberXML{{Name: "missing"}}},
		},
	}
	if err := ac.Validate(); err == nil {
		t.Fatal("expected an error for a multitier cache referencing an undeclared member")
	}
}

func TestValidateRejectsMultipleWriters(t *testing.T) {
	ac := &AliasConfig{
		Caches: []CacheXML{
			{Type: "memory", Name: "a"},
			{Type: "memory", Name: "b"},
			{Type: "multitier", Name: "mt", Members: []MultiTierMemberXML{
				{Name: "a", Write: true},
				{Name: "b", Write: true},
			}},
		},
	}
	if err := ac.Validate(); err == nil {
		t.Fatal("expected an error for a multitier cache with two write tiers")
	}
}

func TestValidateAcceptsWellFormedMultiTier(t *testing.T) {
	ac := &AliasConfig{
		Caches: []CacheXML{
			{Type: "memory", Name: "a"},
			{Type: "memory", Name: "b"},
			{Type: "multitier", Name: "mt", Members: []MultiTierMemberXML{
				{Name: "a"},
				{Name: "b", Write: true},
			}},
		},
	}
	if err := ac.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsEmptyMultiTier(t *testing.T) {
	ac := &AliasConfig{
		Caches: []CacheXML{{Type: "multitier", Name: "mt"}},
	}
	if err := ac.Validate(); err == nil {
		t.Fatal("expected an error for a multitier cache with no members")
	}
}
