// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveRegion(t *testing.T) {
	assert.Equal(t, DefaultRegion, resolveRegion(Options{}))
	assert.Equal(t, "eu-west-1", resolveRegion(Options{Region: "eu-west-1"}))
}

func TestResolvePathStyle(t *testing.T) {
	assert.False(t, resolvePathStyle(Options{}))
	assert.True(t, resolvePathStyle(Options{PathStyle: true}))
	assert.True(t, resolvePathStyle(Options{Endpoint: "http://localhost:9000"}))
}
