package memory

import "github.com/gin-gonic/gin"

const storeKey = "memory_store"

// Use este middleware no setup do gin (mesmo esquema do db.SetDBtoContext).
func SetStoreToContext(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(storeKey, store)
		c.Next()
	}
}

func StoreInstance(c *gin.Context) Store {
	v, ok := c.Get(storeKey)
	if !ok {
		return nil
	}
	store, _ := v.(Store)
	return store
}
