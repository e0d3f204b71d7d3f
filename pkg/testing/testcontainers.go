package testing

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	pkgmongo "github.com/wms-platform/reservation-service/pkg/mongodb"
)

// MongoDBContainer wraps a single-node replica set so that multi-document
// transactions are available to integration tests.
type MongoDBContainer struct {
	Container *mongodb.MongoDBContainer
	URI       string
}

// NewMongoDBContainer starts mongo:6 with replica set "rs"
func NewMongoDBContainer(ctx context.Context) (*MongoDBContainer, error) {
	container, err := mongodb.Run(ctx, "mongo:6",
		mongodb.WithReplicaSet("rs"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start mongodb container: %w", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &MongoDBContainer{
		Container: container,
		URI:       uri,
	}, nil
}

// Config returns a client config pointing at the container and the given database
func (m *MongoDBContainer) Config(database string) *pkgmongo.Config {
	config := pkgmongo.DefaultConfig()
	config.URI = m.URI
	config.Database = database
	config.DirectConnection = true
	config.MinPoolSize = 0
	return config
}

// NewClient connects a pkg/mongodb client to the container
func (m *MongoDBContainer) NewClient(ctx context.Context, database string) (*pkgmongo.Client, error) {
	return pkgmongo.NewClient(ctx, m.Config(database))
}

// Close terminates the MongoDB container
func (m *MongoDBContainer) Close(ctx context.Context) error {
	if m.Container != nil {
		return m.Container.Terminate(ctx)
	}
	return nil
}
