package domain

// IDAllocator hands out element ids that are unique for the process lifetime.
type IDAllocator interface {
	NextID() string
}
