package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/golang/glog"

	"github.com/hb9tf/plutoiq/collector"
	"github.com/hb9tf/plutoiq/export"
	"github.com/hb9tf/plutoiq/sdr"
)

var (
	listen     = flag.String("listen", ":7070", "Address to serve the webhook and data API on.")
	certFile   = flag.String("certFile", "", "Path of the file containing the certificate (including the chained intermediates and root) for the TLS connection.")
	keyFile    = flag.String("keyFile", "", "Path of the file containing the key for the TLS connection.")
	maxRecords = flag.Int("maxRecords", collector.DefaultMaxRecords, "Number of most recent records to serve on /api/iq-data.")
	output     = flag.String("output", "", "Additionally persist received records (one of: csv, sqlite, mysql). Empty keeps them in memory only.")
	identifier = flag.String("id", "collector", "Identifier stored alongside persisted records.")

	// SQLite
	sqliteFile = flag.String("sqliteFile", "/tmp/plutoiq", "File path of the sqlite DB file to use.")

	// MySQL
	mysqlServer       = flag.String("mysqlServer", "127.0.0.1:3306", "MySQL TCP server endpoint to connect to (IP/DNS and port).")
	mysqlUser         = flag.String("mysqlUser", "", "MySQL DB user.")
	mysqlPasswordFile = flag.String("mysqlPasswordFile", "", "Path to the file containing the password for the MySQL user.")
	mysqlDBName       = flag.String("mysqlDBName", "plutoiq", "Name of the DB to use.")
)

func main() {
	ctx := context.Background()
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	// Exporter setup
	var exporter export.Transmitter
	var err error
	switch strings.ToLower(*output) {
	case "":
	case "csv":
		exporter = &export.CSV{W: os.Stdout}
	case "sqlite":
		exporter, err = export.OpenSQLite(ctx, *sqliteFile, *identifier)
	case "mysql":
		exporter, err = export.OpenMySQL(ctx, &export.MySQLConfig{
			Server:       *mysqlServer,
			User:         *mysqlUser,
			PasswordFile: *mysqlPasswordFile,
			DBName:       *mysqlDBName,
		}, *identifier)
	default:
		glog.Exitf("%q is not a supported export method, pick one of: csv, sqlite, mysql", *output)
	}
	if err != nil {
		glog.Exitf("unable to set up %s export: %s", *output, err)
	}

	s := &collector.Server{
		Store: collector.NewStore(*maxRecords),
	}
	if exporter != nil {
		batches := make(chan []sdr.Record, 1000)
		s.Persist = batches
		go func() {
			if err := export.Drain(ctx, exporter, batches); err != nil {
				glog.Errorf("persistence stopped: %s\n", err)
			}
		}()
	}

	// Configure and run webserver.
	r := s.Router()
	glog.Infof("serving webhook on %s%s\n", *listen, collector.WebhookEndpoint)
	if *certFile != "" || *keyFile != "" {
		glog.Fatal(r.RunTLS(*listen, *certFile, *keyFile))
	} else {
		glog.Infoln("Resorting to serving HTTP because there was no certificate and key defined.")
		glog.Fatal(r.Run(*listen))
	}
}
