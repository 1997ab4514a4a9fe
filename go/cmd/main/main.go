package main

import (
	"github.com/lunixbochs/nxcorn/go/cmd"

	_ "github.com/lunixbochs/nxcorn/go/cmd/identify"
	_ "github.com/lunixbochs/nxcorn/go/cmd/info"
	_ "github.com/lunixbochs/nxcorn/go/cmd/load"
	_ "github.com/lunixbochs/nxcorn/go/cmd/scan"
)

func main() { cmd.Main() }
