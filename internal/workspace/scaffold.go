package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/fixloop/internal/filelock"
)

// App types understood by the scaffolder.
const (
	AppConsole  = "console"
	AppWeb      = "web"
	AppWinForms = "winforms"
)

// Step is one scaffold command run in Dir.
type Step struct {
	Dir         string
	CommandLine string
}

// ScaffoldSteps returns the toolchain commands that create the code and test
// projects for appType. Unknown app types scaffold a console project.
// Command lines only carry paths relative to Dir, since they are split on
// whitespace and the workspace root may contain spaces.
func ScaffoldSteps(l Layout, appType string) []Step {
	template := AppConsole
	switch strings.ToLower(appType) {
	case AppWeb:
		template = AppWeb
	case AppWinForms:
		template = AppWinForms
	}

	codeProj := l.CodeProject + "/" + l.CodeProject + ".csproj"
	testProj := l.TestProject + "/" + l.TestProject + ".csproj"

	return []Step{
		{Dir: l.Root, CommandLine: fmt.Sprintf("dotnet new %s -o %s", template, l.CodeProject)},
		{Dir: l.Root, CommandLine: fmt.Sprintf("dotnet new nunit -o %s", l.TestProject)},
		{Dir: l.TestDir, CommandLine: "dotnet add reference ../" + codeProj},
		{Dir: l.Root, CommandLine: "dotnet new sln -n " + SolutionName},
		{Dir: l.Root, CommandLine: "dotnet sln add " + codeProj},
		{Dir: l.Root, CommandLine: "dotnet sln add " + testProj},
	}
}

const (
	netTarget        = "<TargetFramework>net8.0</TargetFramework>"
	netWindowsTarget = "<TargetFramework>net8.0-windows</TargetFramework>\n  <UseWindowsForms>true</UseWindowsForms>"
)

// PatchWinFormsTestProject retargets the test project to net8.0-windows so it
// can reference a WinForms project. Missing or already patched files are left
// alone.
func PatchWinFormsTestProject(l Layout) error {
	path := filepath.Join(l.TestDir, l.TestProject+".csproj")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	csproj := string(data)
	if !strings.Contains(csproj, netTarget) || strings.Contains(csproj, "-windows") {
		return nil
	}

	csproj = strings.Replace(csproj, netTarget, netWindowsTarget, 1)
	return filelock.AtomicWrite(path, []byte(csproj))
}
