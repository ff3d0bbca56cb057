package pushpop_test

import (
	"testing"

	"github.com/dispatchrun/corostack/pushpop"
	"golang.org/x/tools/go/analysis/analysistest"
)

func TestAnalyzer(t *testing.T) {
	if err := pushpop.Analyzer.Flags.Set("pkg", "corostack"); err != nil {
		t.Fatal(err)
	}
	defer pushpop.Analyzer.Flags.Set("pkg", "github.com/dispatchrun/corostack")

	analysistest.Run(t, analysistest.TestData(), pushpop.Analyzer, "a", "corostack")
}
