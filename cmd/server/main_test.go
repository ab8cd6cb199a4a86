package main

import (
	"testing"

	"careercoach-go/internal/repository"

	"github.com/stretchr/testify/assert"
)

func TestNewInterviewRepository_SelectsStore(t *testing.T) {
	for _, store := range []string{"memory", " Memory "} {
		_, ok := newInterviewRepository(store).(*repository.MemoryInterviewRepository)
		assert.True(t, ok, "store %q", store)
	}
	for _, store := range []string{"", "mysql"} {
		repo := newInterviewRepository(store)
		assert.NotNil(t, repo)
		_, ok := repo.(*repository.MemoryInterviewRepository)
		assert.False(t, ok, "store %q", store)
	}
}
