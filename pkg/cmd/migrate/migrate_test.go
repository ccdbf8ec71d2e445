package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrepareURLForDB(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{url: "postgresql://u:p@host/db", want: "postgresql://u:p@host/db?sslmode=disable"},
		{url: "postgresql://u:p@host/db?x=1", want: "postgresql://u:p@host/db?x=1&sslmode=disable"},
		{url: "postgresql://u:p@host/db?sslmode=require", want: "postgresql://u:p@host/db?sslmode=require"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, prepareURLForDB(tt.url))
		})
	}
}
