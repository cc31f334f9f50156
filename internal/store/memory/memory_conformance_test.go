package memory_test

import (
	"testing"

	"github.com/agentplexus/reflectcall/internal/store/memory"
	"github.com/agentplexus/reflectcall/internal/store/storetest"
)

func TestMemoryStoreConformance(t *testing.T) {
	storetest.Run(t, memory.New())
}
