package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// DB exposes the underlying handle for components that open their own transactions.
func (f *Factory) DB() *gorm.DB {
	return f.db
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetCommunityRepository returns the community repository instance
func (f *Factory) GetCommunityRepository() CommunityRepository {
	return f.GetRepositories().Community
}

// GetPromotionRepository returns the promotion repository instance
func (f *Factory) GetPromotionRepository() PromotionRepository {
	return f.GetRepositories().Promotion
}
