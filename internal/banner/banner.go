package banner

import (
	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
)

func PrintBanner() {
	myFigure := figure.NewColorFigure("CSPDERIVE", "doom", "cyan", true)
	myFigure.Print()

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	_, _ = cyan.Println("════════════════════════════════════════════════")
	_, _ = green.Println("    Content Security Policy derivation proxy")
	_, _ = cyan.Println("════════════════════════════════════════════════")
}
