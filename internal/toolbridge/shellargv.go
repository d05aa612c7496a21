package toolbridge

import "strings"

// shellMetaOperators are the characters that make an argv entry not a
// literal argument but a shell construct — piping, redirection, chaining,
// subshells, globbing left for the shell, command substitution, and
// backgrounding.
var shellMetaOperators = []string{"|", "&&", "||", ";", ">", "<", "$(", "`", "*", "&"}

// RewriteShellArgv detects a bash/exec-style tool call whose argv contains
// a shell meta-operator and rewrites it into an explicit ["bash", "-lc",
// <joined command>] invocation, since an argv array handed straight to
// exec.Command never gets shell expansion and the tool would otherwise run
// with the operator as a literal, inert argument (§4.3 "shell argv
// meta-operator rewrite").
func RewriteShellArgv(argv []string) ([]string, bool) {
	if len(argv) == 0 {
		return argv, false
	}

	if argv[0] == "bash" && len(argv) == 3 && argv[1] == "-lc" {
		return argv, false // already rewritten
	}

	for _, arg := range argv {
		for _, op := range shellMetaOperators {
			if strings.Contains(arg, op) {
				return []string{"bash", "-lc", strings.Join(quoteArgv(argv), " ")}, true
			}
		}
	}

	return argv, false
}

func quoteArgv(argv []string) []string {
	quoted := make([]string, len(argv))

	for i, a := range argv {
		if strings.ContainsAny(a, " \t\"'$") {
			quoted[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		} else {
			quoted[i] = a
		}
	}

	return quoted
}
