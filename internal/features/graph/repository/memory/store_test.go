package memory

import (
	"testing"

	"friend-connect-backend/internal/features/graph/repository"
	"friend-connect-backend/internal/features/graph/repository/storetest"
)

func TestGraphStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.GraphStore {
		return NewGraphStore()
	})
}
