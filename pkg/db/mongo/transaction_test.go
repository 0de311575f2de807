package mongo

import (
	"errors"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsWriteConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "transient transaction label",
			err:  mongo.CommandError{Code: 251, Labels: []string{"TransientTransactionError"}},
			want: true,
		},
		{
			name: "write conflict code",
			err:  mongo.CommandError{Code: 112, Name: "WriteConflict"},
			want: true,
		},
		{
			name: "wrapped write conflict",
			err:  fmt.Errorf("commit: %w", mongo.CommandError{Code: 112}),
			want: true,
		},
		{
			name: "unrelated command error",
			err:  mongo.CommandError{Code: 11000, Labels: []string{"RetryableWriteError"}},
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isWriteConflict(tt.err); got != tt.want {
				t.Errorf("isWriteConflict(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
