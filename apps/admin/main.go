package main

import (
	"context"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tarpaulin/backend/core"
	"github.com/tarpaulin/backend/core/user"
	emailsvc "github.com/tarpaulin/backend/services/email"
	"github.com/tarpaulin/backend/storage/database"
	mongorepos "github.com/tarpaulin/backend/storage/database/mongodb"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// set up DB
	db, err := database.Open(ctx, conf)
	errAndDie(err)
	defer func(db *mongo.Database) { _ = database.Close(context.Background(), db) }(db)

	// start CLI
	cli := commandLine{
		db:     db,
		usrSvc: user.NewService(mongorepos.NewUserRepository(db), emailsvc.NewConsoleService(conf), conf),
	}
	if err := cli.run(ctx, os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
