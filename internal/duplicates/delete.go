package duplicates

import (
	"log"
	"os"

	"github.com/rjwaters/cineshelf/internal/models"
)

// DeleteFiles removes the given files, continuing past individual
// failures. The outcome slice is parallel to the input paths.
func DeleteFiles(paths []string) []models.DeleteOutcome {
	outcomes := make([]models.DeleteOutcome, 0, len(paths))
	for _, path := range paths {
		err := os.Remove(path)
		if err != nil {
			log.Printf("Duplicate delete: %s: %v", path, err)
			outcomes = append(outcomes, models.DeleteOutcome{Path: path, Error: err.Error()})
			continue
		}
		log.Printf("Duplicate delete: removed %s", path)
		outcomes = append(outcomes, models.DeleteOutcome{Path: path, Deleted: true})
	}
	return outcomes
}
