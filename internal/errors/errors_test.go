package errors_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	digesterrs "github.com/RichardMN/mastodon-digest/internal/errors"
)

func TestEConstructor(t *testing.T) {
	got := digesterrs.E(
		"something went wrong",
		digesterrs.Detail{Field: "acct", Error: "was bad"},
		http.StatusBadRequest,
	)
	want := &digesterrs.Error{
		Err: errors.New("something went wrong"),
		Details: []digesterrs.Detail{
			{Field: "acct", Error: "was bad"},
		},
		Status: http.StatusBadRequest,
	}

	assert.Equal(t, want, got)
}

func TestEDefaultsToInternal(t *testing.T) {
	got := digesterrs.E(errors.New("oops"))
	assert.Equal(t, http.StatusInternalServerError, got.Status)
}

func TestMarshalJSON(t *testing.T) {
	e := digesterrs.E("not found", http.StatusNotFound)

	byts, err := json.Marshal(e)
	require.NoError(t, err)

	assert.JSONEq(t, `{"message":"not found","details":null,"status":404}`, string(byts))
}
