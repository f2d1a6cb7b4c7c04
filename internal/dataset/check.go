package dataset

import (
	"go.uber.org/multierr"
)

// Check resolves every input the loaders need without parsing any of them and
// returns all problems at once, combined with multierr. Use multierr.Errors to
// list them.
func Check(src Source) error {
	fsys := src.fs()
	var err error
	for _, school := range src.Schools {
		if _, e := resolveEnvFile(fsys, src, school.Name); e != nil {
			err = multierr.Append(err, e)
		}
	}
	if _, e := ResolveWorkbook(src); e != nil {
		err = multierr.Append(err, e)
	}
	return err
}
