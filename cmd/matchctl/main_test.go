package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sheltersJSON = `[
  {"id":"men","name":"Men's Hostel","genderPolicy":"men-only","petPolicy":"no-pets"},
  {"id":"all","name":"Open Door","genderPolicy":"all-genders","petPolicy":"all-pets"},
  {"name":"Broken","genderPolicy":"nobody","petPolicy":"no-pets"}
]`

func writeInputs(t *testing.T, profile string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	pp := filepath.Join(dir, "profile.json")
	sp := filepath.Join(dir, "shelters.json")
	require.NoError(t, os.WriteFile(pp, []byte(profile), 0o600))
	require.NoError(t, os.WriteFile(sp, []byte(sheltersJSON), 0o600))
	return pp, sp
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRankPrintsEligibleShelters(t *testing.T) {
	pp, sp := writeInputs(t, `{"gender":"female","hasPets":true}`)
	out, err := run(t, "rank", "--profile", pp, "--shelters", sp)
	require.NoError(t, err)

	var body struct {
		Success bool `json:"success"`
		Matches []struct {
			ShelterID       string `json:"shelterId"`
			PercentageMatch int    `json:"percentageMatch"`
		} `json:"matches"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Matches, 1)
	assert.Equal(t, "all", body.Matches[0].ShelterID)
}

func TestExplainNamesFailingGate(t *testing.T) {
	pp, sp := writeInputs(t, `{"gender":"female"}`)
	out, err := run(t, "explain", "--profile", pp, "--shelters", sp)
	require.NoError(t, err)
	assert.Contains(t, out, "gender-policy")
	assert.Contains(t, out, "#2")
	assert.Contains(t, out, "malformed")
	assert.Contains(t, out, "Gender Policy 10/10")
}

func TestRankRejectsInvalidProfile(t *testing.T) {
	pp, sp := writeInputs(t, `{"dateOfBirth":"1990-01-01"}`)
	_, err := run(t, "rank", "--profile", pp, "--shelters", sp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gender is required")
}

func TestRankRequiresFlags(t *testing.T) {
	_, err := run(t, "rank")
	assert.Error(t, err)
}
