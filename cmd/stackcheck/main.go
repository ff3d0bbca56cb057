// Command stackcheck reports execution context stack pushes that are not
// popped on every exit path.
//
// Usage:
//
//	stackcheck [-pkg path] [packages]
package main

import (
	"github.com/dispatchrun/corostack/pushpop"
	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() { singlechecker.Main(pushpop.Analyzer) }
