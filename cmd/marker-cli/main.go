package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/markerstore/marker-node/internal/checkpoint"
	"github.com/markerstore/marker-node/internal/entityview"
	"github.com/markerstore/marker-node/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	dbPath := getEnv("MARKER_DB_PATH", "./marker-node.db")
	cmd := os.Args[1]

	switch cmd {
	case "markers":
		if err := runMarkers(dbPath); err != nil {
			fmt.Fprintf(os.Stderr, "markers failed: %v\n", err)
			os.Exit(1)
		}

	case "get":
		if len(os.Args) < 3 {
			fmt.Println("Usage: marker-cli get <entity-id>")
			os.Exit(1)
		}
		if err := runGet(dbPath, os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "get failed: %v\n", err)
			os.Exit(1)
		}

	case "checkpoints":
		if err := runCheckpoints(dbPath); err != nil {
			fmt.Fprintf(os.Stderr, "checkpoints failed: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Printf("unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("	marker-cli markers              list every materialized entity")
	fmt.Println("	marker-cli get <entity-id>      print one entity")
	fmt.Println("	marker-cli checkpoints          print the replication checkpoint per peer")
	fmt.Println("")
	fmt.Println("Reads the database at $MARKER_DB_PATH (default ./marker-node.db) directly;")
	fmt.Println("run it on the same host as the node, not over the network.")
}

func runMarkers(dbPath string) error {
	db, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	view := entityview.NewBoltStore(db)
	entities, err := view.GetAll()
	if err != nil {
		return err
	}

	if len(entities) == 0 {
		fmt.Println("no markers")
		return nil
	}
	for _, e := range entities {
		printEntity(e)
	}
	return nil
}

func runGet(dbPath, idStr string) error {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("invalid entity id %q: %w", idStr, err)
	}

	db, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	view := entityview.NewBoltStore(db)
	entity, found, err := view.Get(id)
	if err != nil {
		return err
	}
	if !found {
		fmt.Println("not found")
		os.Exit(1)
	}
	printEntity(entity)
	return nil
}

func runCheckpoints(dbPath string) error {
	db, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	cps := checkpoint.NewBoltStore(db)
	all, err := cps.GetAll()
	if err != nil {
		return err
	}

	if len(all) == 0 {
		fmt.Println("no checkpoints recorded")
		return nil
	}
	for peer, seq := range all {
		fmt.Printf("peer=%d checkpoint=%d\n", peer, seq)
	}
	return nil
}

func printEntity(e entityview.Entity) {
	label := ""
	if e.Label != nil {
		label = *e.Label
	}
	fmt.Printf("id=%s lat=%f lon=%f icon=%s label=%q deleted=%t wall=%d logical=%d node=%d source_event=%d@%d\n",
		e.ID, e.Lat, e.Lon, e.IconID, label, e.Deleted,
		e.HLC.WallTime, e.HLC.Counter, e.HLC.NodeID,
		e.SourceEvent.NodeID, e.SourceEvent.Sequence)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
