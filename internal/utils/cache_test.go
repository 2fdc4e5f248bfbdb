package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheSetGetDelete(t *testing.T) {
	c := GetCache()

	c.Set("test:key", "value", time.Minute)
	assert.Equal(t, "value", c.Get("test:key"))

	c.Delete("test:key")
	assert.Nil(t, c.Get("test:key"))
}

func TestCacheExpiry(t *testing.T) {
	c := GetCache()

	c.Set("test:expiring", 42, -time.Second)
	assert.Nil(t, c.Get("test:expiring"))
}

func TestCacheMissReturnsNil(t *testing.T) {
	assert.Nil(t, GetCache().Get("test:never-set"))
}
