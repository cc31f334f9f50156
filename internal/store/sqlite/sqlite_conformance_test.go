package sqlite_test

import (
	"testing"

	"github.com/agentplexus/reflectcall/internal/store/sqlite"
	"github.com/agentplexus/reflectcall/internal/store/storetest"
)

func TestSQLiteStoreConformance(t *testing.T) {
	st, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	defer st.Close()

	storetest.Run(t, st)
}
