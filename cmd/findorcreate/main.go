// Command findorcreate finds a record in a MongoDB collection or creates it.
//
//	findorcreate [flags] <collection> <query> [doc]
//
// Query and doc are MongoDB extended JSON. The result is printed as
// {"doc": ..., "isNew": ...}.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/alecthomas/kong"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Nemutagk/findorcreate"
	"github.com/Nemutagk/findorcreate/driver/mongodb"
	"github.com/Nemutagk/findorcreate/helper"
)

// The cli struct represents all command-line commands, fields and flags.
// It's used for parsing the user input.
var cli struct {
	URI              string        `default:"${default_uri}" help:"MongoDB connection string."`
	Database         string        `default:"${default_database}" help:"Database name."`
	Upsert           bool          `help:"Apply the document to a matching record too."`
	NoNew            bool          `name:"no-new" help:"Print the record as it was before the update."`
	Fields           string        `help:"Fields to return, e.g. 'name age' or '-secret'."`
	Sort             string        `help:"Sort used to pick the record, e.g. 'name -age'."`
	Defaults         string        `help:"Values set on insert for missing fields, as extended JSON."`
	EventsCollection string        `default:"${default_events_collection}" help:"Collection events are stored in."`
	LogFile          string        `name:"log-file" default:"${default_log_path}" help:"Directory for the event log file."`
	LogRotate        bool          `name:"log-rotate" default:"${default_log_rotate}" help:"Rotate the event log daily."`
	Console          bool          `help:"Echo the call to stderr."`
	RequestID        string        `name:"request-id" help:"Request id recorded with the event."`
	Timeout          time.Duration `default:"${default_timeout}" help:"Timeout for the whole call."`

	Collection string `arg:"" help:"Collection name."`
	Query      string `arg:"" help:"Query filter as extended JSON."`
	Doc        string `arg:"" optional:"" help:"Document as extended JSON."`
}

func main() {
	cfg := findorcreate.LoadConfig()
	kongCtx := kong.Parse(&cli,
		kong.Description("Find a record or create it with a single atomic findAndModify."),
		kong.Vars{
			"default_uri":               cfg.MongoURI,
			"default_database":          cfg.Database,
			"default_events_collection": cfg.EventsCollection,
			"default_log_path":          cfg.LogPath,
			"default_log_rotate":        strconv.FormatBool(cfg.LogRotateDaily),
			"default_timeout":           cfg.Timeout.String(),
		},
	)

	cfg.LogPath = cli.LogFile
	cfg.LogRotateDaily = cli.LogRotate
	kongCtx.FatalIfErrorf(run(context.Background(), cfg))
}

func run(ctx context.Context, cfg findorcreate.Config) error {
	query, err := parseDocument(cli.Query)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	doc, err := parseDocument(cli.Doc)
	if err != nil {
		return fmt.Errorf("doc: %w", err)
	}
	defaults, err := parseDocument(cli.Defaults)
	if err != nil {
		return fmt.Errorf("defaults: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cli.Timeout)
	defer cancel()
	ctx = helper.WithRequestID(ctx, cli.RequestID)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cli.URI))
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()
	db := client.Database(cli.Database)

	eventOpts := cfg.EventOptions()
	if cli.EventsCollection != "" {
		eventOpts = append(eventOpts, findorcreate.WithDatabaseDriver(mongodb.NewMongoDBAdapter(db.Collection(cli.EventsCollection))))
	}
	events := findorcreate.NewEventService(eventOpts...)
	defer events.Close()

	modelOpts := []findorcreate.ModelOption{findorcreate.WithEventService(events)}
	if defaults != nil {
		modelOpts = append(modelOpts, findorcreate.WithDefaults(defaults))
	}
	if cli.Console {
		modelOpts = append(modelOpts, findorcreate.WithConsole(os.Stderr))
	}
	model := findorcreate.NewModel(cli.Collection, mongodb.NewMongoDBAdapter(db.Collection(cli.Collection)), modelOpts...)

	res, err := model.FindOrCreate(ctx, query, doc, callOptions())
	if err != nil {
		return err
	}

	out, err := bson.MarshalExtJSON(bson.M{"doc": res.Doc, "isNew": res.IsNew}, false, false)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func callOptions() *findorcreate.Options {
	opts := &findorcreate.Options{
		Upsert: pointer.ToBool(cli.Upsert),
		New:    pointer.ToBool(!cli.NoNew),
	}
	if cli.Fields != "" {
		opts.Fields = cli.Fields
	}
	if cli.Sort != "" {
		opts.Sort = cli.Sort
	}
	return opts
}

// parseDocument decodes extended JSON; an empty string is a nil document.
func parseDocument(s string) (bson.M, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil, nil
	}
	var doc bson.M
	if err := bson.UnmarshalExtJSON([]byte(s), false, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
