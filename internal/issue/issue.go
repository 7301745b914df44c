// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	RequirementsFileNotFoundId Id = iota + 1
	RequirementParseErrorId
	ModuleNotFoundId
	InterpreterNotFoundId
	ResolverNotFoundId
	ResolutionFailedId
	VersionConflictId
	CacheCorruptionId
	InstallFailedId
	ConfigLoadFailedId
	HookFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // links into the project docs
	extLinks []HttpLink  // upstream references (PyPA docs, PEPs) that might help the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	requirementsFileNotFoundIssue = &Issue{
		id: RequirementsFileNotFoundId,
		mdMsg: `
# No requirements files found!

We searched every configured directory but did not find a single requirements file.

## Search rules:
- Files matching the configured pattern (default: requirements*.txt)
- pyproject.toml files with a [project] dependencies table
- Vendor directories (.venv, node_modules, __pycache__, ...) are skipped

## Things you can try:
- Create a requirements file in your project root:
~~~
$ echo "flask==2.3.2" > requirements.txt
$ depcache resolve
~~~

- Point depcache at explicit files:
~~~
$ depcache resolve -r path/to/requirements-api.txt
~~~

- Adjust the pattern in your config:
~~~cue
requirements_pattern: "deps/requirements*.txt"
~~~`,
	}

	requirementParseErrorIssue = &Issue{
		id: RequirementParseErrorId,
		mdMsg: `
# Failed to parse requirement!

One of your requirement lines is not something we can work with.

## Common issues:
- Unsupported version operator (==, >=, <=, >, <, ~=, != are recognized)
- Unbalanced extras bracket, e.g. ` + "`requests[security`" + `
- A single ` + "`=`" + ` where ` + "`==`" + ` was meant (we fix that one up for you)

## Examples of valid requirement lines:
~~~
flask==2.3.2
requests[security,socks]>=2.31
celery[redis]~=5.3
uvicorn
~~~`,
		extLinks: []HttpLink{
			"https://packaging.python.org/en/latest/specifications/version-specifiers/",
		},
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Module not found!

The module name you passed does not match anything that discovery found.

## How modules get their names:
- requirements.txt at the search root: ` + "`root`" + `
- requirements-api.txt: ` + "`api`" + `
- billing-requirements.txt: ` + "`billing`" + `
- services/search/requirements.txt: ` + "`search`" + `
- pyproject.toml in shop/: ` + "`shop`" + ` (plus ` + "`shop[group]`" + ` per optional group)

## Things you can try:
- Run a plain resolve to see every module that discovery picks up:
~~~
$ depcache resolve
~~~

- List the modules that already have cache entries:
~~~
$ depcache cache list
~~~

- Check for typos in the module name (names are lowercase)
- Widen the search with --search-dir if the file lives elsewhere`,
	}

	interpreterNotFoundIssue = &Issue{
		id: InterpreterNotFoundId,
		mdMsg: `
# Python interpreter not found!

We could not run the configured Python interpreter.

## Things you can try:
- Check that python3 is on your PATH:
~~~
$ python3 --version
~~~

- Point depcache at a specific interpreter in your config:
~~~cue
interpreter: "/usr/bin/python3.12"
~~~

- If you work inside a virtualenv, activate it first so its interpreter wins:
~~~
$ source .venv/bin/activate
$ depcache check
~~~`,
	}

	resolverNotFoundIssue = &Issue{
		id: ResolverNotFoundId,
		mdMsg: `
# Resolver command not found!

The resolver command could not be started. By default depcache shells out to
pip-compile from the pip-tools project.

## Things you can try:
- Install pip-tools next to your interpreter:
~~~
$ python3 -m pip install pip-tools
~~~

- Or configure a different resolver:
~~~cue
resolver_command: ["uv", "pip", "compile", "--output-file=-", "-"]
~~~

The command must read requirements from stdin and print pinned versions
(one name==version per line) on stdout.`,
		extLinks: []HttpLink{
			"https://pip-tools.readthedocs.io",
		},
	}

	resolutionFailedIssue = &Issue{
		id: ResolutionFailedId,
		mdMsg: `
# Dependency resolution failed!

The resolver ran but could not produce a set of pinned versions.

## Common causes:
- No distribution matches the requested version range
- Conflicting constraints between requirements in the same module
- Network or index problems while fetching package metadata

## Things you can try:
- Re-run with verbose mode to see the resolver's own output:
~~~
$ depcache -v resolve
~~~

- Run the resolver by hand against the module's requirements file:
~~~
$ python3 -m piptools compile requirements-api.txt
~~~

- Loosen the failing constraint and resolve again`,
	}

	versionConflictIssue = &Issue{
		id: VersionConflictId,
		mdMsg: `
# Version conflict between modules!

Two modules pin the same package at different versions. All modules install
into one shared environment, so a single version has to win, and we refuse
to guess which.

## Things you can try:
- Align the constraint in both requirements files and resolve again
- Move the disagreeing module into its own environment (own virtualenv, own cache dir)
- Clear stale pins if one side has already been fixed:
~~~
$ depcache cache clear --module api
$ depcache resolve
~~~`,
	}

	cacheCorruptionIssue = &Issue{
		id: CacheCorruptionId,
		mdMsg: `
# Cache entry is corrupted!

A cached resolution could not be read back. This usually means a partial
write from a crashed run or manual edits under the cache directory.

Corrupted entries are treated as stale: the next resolve rebuilds them, so
in most cases no action is needed.

## Things you can try:
- Force a rebuild of one module:
~~~
$ depcache cache clear --module api
$ depcache resolve
~~~

- Or wipe the whole cache:
~~~
$ depcache cache clear
~~~`,
	}

	installFailedIssue = &Issue{
		id: InstallFailedId,
		mdMsg: `
# Package install failed!

pip exited with an error while installing a pinned package.

## Common causes:
- No wheel for your platform and the sdist needs a compiler toolchain
- Network or index problems
- The pinned version was yanked from the index

## Things you can try:
- Re-run the failing install by hand to see pip's full output:
~~~
$ python3 -m pip install flask==2.3.2
~~~

- Check connectivity to your package index
- Re-resolve if the pinned version no longer exists:
~~~
$ depcache cache clear --module api
$ depcache resolve
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the depcache configuration file.

## Configuration file locations:
- Linux: ~/.config/depcache/config.cue
- macOS: ~/Library/Application Support/depcache/config.cue
- Windows: %APPDATA%\depcache\config.cue
- Project-local: ./depcache.cue

## Things you can try:
- Create a default configuration:
~~~
$ depcache config init
~~~

- Check the configuration syntax
- Remove the config file to use defaults:
~~~
$ rm ~/.config/depcache/config.cue
~~~

## Example configuration:
~~~cue
cache_dir: ".depcache"
requirements_pattern: "requirements*.txt"
interpreter: "python3"
jobs: 4

ui: {
    color_scheme: "auto"
    verbose: false
}
~~~`,
	}

	hookFailedIssue = &Issue{
		id: HookFailedId,
		mdMsg: `
# Hook script failed!

A configured hook exited with a non-zero status, so the surrounding
operation was aborted.

Hooks run in a built-in POSIX shell interpreter. The cache directory and the
run's module/package counts are exported as DEPCACHE_* variables
(DEPCACHE_CACHE_DIR, DEPCACHE_MODULE_COUNT, DEPCACHE_RESOLVED_COUNT, ...).

## Things you can try:
- Run the hook body in your own shell to debug it
- Check the hooks section of your config:
~~~cue
hooks: {
    post_resolve: "notify-send 'deps resolved'"
}
~~~

- Remove the hook if it is no longer needed`,
	}

	issues = map[Id]*Issue{
		requirementsFileNotFoundIssue.Id(): requirementsFileNotFoundIssue,
		requirementParseErrorIssue.Id():    requirementParseErrorIssue,
		moduleNotFoundIssue.Id():           moduleNotFoundIssue,
		interpreterNotFoundIssue.Id():      interpreterNotFoundIssue,
		resolverNotFoundIssue.Id():         resolverNotFoundIssue,
		resolutionFailedIssue.Id():         resolutionFailedIssue,
		versionConflictIssue.Id():          versionConflictIssue,
		cacheCorruptionIssue.Id():          cacheCorruptionIssue,
		installFailedIssue.Id():            installFailedIssue,
		configLoadFailedIssue.Id():         configLoadFailedIssue,
		hookFailedIssue.Id():               hookFailedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
