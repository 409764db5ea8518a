package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	echoapi "github.com/tarpaulin/backend/apps/api/echo"
	"github.com/tarpaulin/backend/core"
	"github.com/tarpaulin/backend/core/assignment"
	"github.com/tarpaulin/backend/core/authz"
	"github.com/tarpaulin/backend/core/course"
	"github.com/tarpaulin/backend/core/user"
	emailsvc "github.com/tarpaulin/backend/services/email"
	logsvc "github.com/tarpaulin/backend/services/logger"
	"github.com/tarpaulin/backend/storage/blob"
	"github.com/tarpaulin/backend/storage/database"
	mongorepos "github.com/tarpaulin/backend/storage/database/mongodb"
)

func main() {
	conf := core.NewConfig()
	std := log.New(os.Stdout, fmt.Sprintf("%s API: ", conf.AppName), log.LstdFlags|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!conf.Debug)

	if err := run(conf, logger); err != nil {
		logger.Fatal("starting API", err)
	}
}

func run(conf *core.Config, logger core.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// set up DB
	db, err := database.Open(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = database.Close(context.Background(), db) }()
	if err = database.EnsureIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "ensuring indexes")
	}

	// set up validation
	translator, _ := ut.New(en.New()).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	blobs, err := blob.NewGridFSStore(db)
	if err != nil {
		return errors.Wrap(err, "creating blob store")
	}
	crsRepo := mongorepos.NewCourseRepository(db)
	usrSvc := user.NewService(mongorepos.NewUserRepository(db), mailSvc, conf)
	asgSvc := assignment.NewService(mongorepos.NewAssignmentRepository(db), blobs)
	crsSvc := course.NewService(crsRepo, usrSvc, asgSvc)
	engine := authz.NewEngine(crsSvc)

	if err = bootstrapAdmin(ctx, conf, usrSvc, logger); err != nil {
		return err
	}

	// start API server
	app := echoapi.NewServer(&echoapi.Options{
		Addr:          fmt.Sprintf("%s:%d", conf.Server.Host, conf.Server.Port),
		UserSvc:       usrSvc,
		CourseSvc:     crsSvc,
		AssignmentSvc: asgSvc,
		Engine:        engine,
		Logger:        logger,
		Conf:          conf,
		Validate:      validate,
		Translator:    translator,
	})
	app.Start()
	return nil
}

// bootstrapAdmin creates the configured admin account on first boot so a
// fresh deployment has a way in. An existing account is left alone.
func bootstrapAdmin(ctx context.Context, conf *core.Config, svc user.Service, logger core.Logger) error {
	email := conf.BootstrapAdmin.Email
	pwd := conf.BootstrapAdmin.Password
	if email == "" || pwd == "" {
		return nil
	}

	if _, err := svc.GetByEmail(ctx, email); err == nil {
		return nil
	} else if errors.Cause(err) != user.ErrNotFound {
		return errors.Wrap(err, "looking up bootstrap admin")
	}

	_, err := svc.Create(ctx, user.NewUser{
		Name:     "Admin",
		Email:    email,
		Password: pwd,
		Role:     authz.RoleAdmin,
	})
	if err != nil {
		return errors.Wrap(err, "creating bootstrap admin")
	}
	logger.Info("bootstrap admin created", map[string]interface{}{"email": email})
	return nil
}
