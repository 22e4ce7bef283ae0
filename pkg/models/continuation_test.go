package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContinuationState_IssuedTo(t *testing.T) {
	state := &ContinuationState{BoundTableName: "sales", Tenant: "acme", AuthCode: "SALES", Level: 5}

	tests := []struct {
		name    string
		state   *ContinuationState
		tenant  string
		profile *AccessProfile
		want    bool
	}{
		{name: "same caller", state: state, tenant: "acme", profile: &AccessProfile{AuthCode: "SALES", Level: 5}, want: true},
		{name: "other tenant", state: state, tenant: "globex", profile: &AccessProfile{AuthCode: "SALES", Level: 5}},
		{name: "other auth code", state: state, tenant: "acme", profile: &AccessProfile{AuthCode: "HR", Level: 5}},
		{name: "more privileged level", state: state, tenant: "acme", profile: &AccessProfile{AuthCode: "SALES", Level: 1}},
		{name: "no profile", state: state, tenant: "acme"},
		{name: "no state", tenant: "acme", profile: &AccessProfile{AuthCode: "SALES", Level: 5}},
		{name: "unbound legacy state", state: &ContinuationState{BoundTableName: "sales"}, tenant: "acme", profile: &AccessProfile{AuthCode: "SALES", Level: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.IssuedTo(tt.tenant, tt.profile))
		})
	}
}
