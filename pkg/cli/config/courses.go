package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/monfocus/monfocus/pkg/domain/types"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// Courses loads the course catalog from a TOML file:
//
//	[[course]]
//	id = "course-math-3e"
//	name = "Mathématiques 3e"
//	description = "Programme de troisième"
//
// The catalog bounds which course IDs the identity headers may claim.
type Courses struct {
	path string
}

// Course is one catalog entry
type Course struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

// Validate checks if the Course is valid
func (c *Course) Validate() error {
	if c.ID == "" {
		return goerr.New("course id is required", goerr.V("name", c.Name))
	}
	if c.Name == "" {
		return goerr.New("course name is required", goerr.V("id", c.ID))
	}
	return nil
}

type courseCatalog struct {
	Courses []Course `toml:"course"`
}

// Flags returns CLI flags for the course catalog
func (x *Courses) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "course-config",
			Usage:       "Path to the course catalog TOML file",
			Sources:     cli.EnvVars("MONFOCUS_COURSE_CONFIG"),
			Destination: &x.path,
		},
	}
}

// Configure loads and validates the catalog. Without a configured path
// it returns nil, meaning any course ID is accepted.
func (x *Courses) Configure() ([]types.CourseID, error) {
	if x.path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(x.path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read course catalog", goerr.V("path", x.path))
	}

	var catalog courseCatalog
	if err := toml.Unmarshal(data, &catalog); err != nil {
		return nil, goerr.Wrap(err, "failed to parse course catalog", goerr.V("path", x.path))
	}

	seen := make(map[string]bool, len(catalog.Courses))
	courseIDs := make([]types.CourseID, 0, len(catalog.Courses))
	for _, course := range catalog.Courses {
		if err := course.Validate(); err != nil {
			return nil, err
		}
		if seen[course.ID] {
			return nil, goerr.New("duplicate course id", goerr.V("id", course.ID))
		}
		seen[course.ID] = true
		courseIDs = append(courseIDs, types.CourseID(course.ID))
	}

	return courseIDs, nil
}
