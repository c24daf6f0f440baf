package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func StartConnection(ctx context.Context, mgoUrl string, logger logrus.FieldLogger) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	mgoConn, err := mongo.Connect(ctx, options.Client().ApplyURI(mgoUrl))
	if err != nil {
		return nil, fmt.Errorf("error during connection with mongodb: %w", err)
	}
	if err := mgoConn.Ping(ctx, readpref.Primary()); err != nil {
		_ = mgoConn.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb did not answer ping: %w", err)
	}

	logger.Info("connected successfully with mongodb")
	return mgoConn, nil
}
