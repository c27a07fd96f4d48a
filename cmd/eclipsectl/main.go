// Command eclipsectl evaluates and traces catalog eclipses from the shell.
//
// Usage:
//
//	eclipsectl list
//	eclipsectl local 2024-04-08 --lat 32.78 --lon -96.80
//	eclipsectl paths 2024-04-08 > paths.geojson
//	eclipsectl shadow 2024-04-08 --time 2024-04-08T18:17:00Z --umbra
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
