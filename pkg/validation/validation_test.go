package validation

import (
	"strings"
	"testing"
)

const (
	testTableNameMaxSize = 255
	testKeyMaxSize       = 64 * 1024
	testValueMaxSize     = 1024 * 1024
)

func TestValidateTableName(t *testing.T) {
	if err := ValidateTableName("users_2", testTableNameMaxSize); err != nil {
		t.Fatalf("valid name rejected: %v", err)
	}
	if err := ValidateTableName("", testTableNameMaxSize); err == nil {
		t.Fatalf("empty name accepted")
	}
	if err := ValidateTableName("bad name!", testTableNameMaxSize); err == nil {
		t.Fatalf("name with invalid characters accepted")
	}
	if err := ValidateTableName(strings.Repeat("a", testTableNameMaxSize+1), testTableNameMaxSize); err == nil {
		t.Fatalf("over-long name accepted")
	}
}

func TestValidateKey(t *testing.T) {
	if err := ValidateKey("k", testKeyMaxSize); err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
	if err := ValidateKey("", testKeyMaxSize); err == nil {
		t.Fatalf("empty key accepted")
	}
	if err := ValidateKey(strings.Repeat("k", testKeyMaxSize+1), testKeyMaxSize); err == nil {
		t.Fatalf("over-long key accepted")
	}
}

func TestValidateValue(t *testing.T) {
	if err := ValidateValue("", testValueMaxSize); err != nil {
		t.Fatalf("empty value should be allowed: %v", err)
	}
	if err := ValidateValue(strings.Repeat("v", testValueMaxSize+1), testValueMaxSize); err == nil {
		t.Fatalf("over-long value accepted")
	}
}
