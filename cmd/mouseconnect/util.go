package main

import (
	"context"

	"github.com/pkg/errors"
)

// hasForceFlag reports whether a force flag follows the positional argument.
// Flag parsing stops at the first positional argument, so "pull out.lua -f"
// leaves -f among the remaining args.
func hasForceFlag(args []string) bool {
	for _, a := range args {
		switch a {
		case "-f", "--force", "-force":
			return true
		}
	}
	return false
}

func chkErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return errors.New("interrupted")
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, "timed out")
	}
	return err
}
