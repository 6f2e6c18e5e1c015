package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"user.deleted", "user.deleted", true},
		{"user.deleted", "user.created", false},
		{"user.*", "user.deleted", true},
		{"user.*", "user", false},
		{"user.*", "user.deleted.soft", false},
		{"*.deleted", "product.deleted", true},
		{"user.#", "user", true},
		{"user.#", "user.deleted.soft", true},
		{"#", "anything.at.all", true},
		{"#.deleted", "user.deleted", true},
		{"#.deleted", "deleted", true},
		{"#.deleted", "user.created", false},
		{"user.#.soft", "user.deleted.soft", true},
		{"user.#.soft", "user.soft", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, matchTopic(tt.pattern, tt.key))
		})
	}
}
