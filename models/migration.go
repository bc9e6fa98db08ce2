package models

import (
	"log"

	"github.com/mmdatafocus/segments_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Customer{}, &Product{}, &Order{},
		&CustomerSegment{},
		&DataRefreshLog{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
