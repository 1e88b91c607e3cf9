package cli_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/calvinalkan/dtab/internal/cli"
)

func Test_Invalid_Global_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, exitCode := c.Run("--invalid-flag", "size", "t.csv")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stdout, ""; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stderr, "unknown flag")
	cli.AssertContains(t, stderr, "--invalid-flag")

	cli.AssertContains(t, stderr, "Global flags:")
	cli.AssertContains(t, stderr, "--help")
	cli.AssertContains(t, stderr, "--cwd")
	cli.AssertContains(t, stderr, "--config")
	cli.AssertContains(t, stderr, "--delimiter")
}

func Test_Empty_Delimiter_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("t.csv", "a,b\n")

	stdout, stderr, exitCode := c.Run("--delimiter=", "size", "t.csv")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stdout, ""; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stderr, "delimiter cannot be empty")
	cli.AssertContains(t, stderr, "Global flags:")
}

func Test_Bare_Command_When_Invoked(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	exitCode := cli.Run(nil, &stdout, &stderr, []string{"dtab"}, nil, nil)

	if got, want := exitCode, 0; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stderr.String(), ""; got != want {
		t.Errorf("stderr=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stdout.String(), "dtab - delimited table tool")
	cli.AssertContains(t, stdout.String(), "--cwd")
	cli.AssertContains(t, stdout.String(), "value <file> <i> <j>")
}

func Test_Main_Help_When_Invoked(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name string
		args []string
	}{
		{name: "long flag", args: []string{"--help"}},
		{name: "short flag", args: []string{"-h"}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			stdout, stderr, exitCode := c.Run(tt.args...)

			if got, want := exitCode, 0; got != want {
				t.Errorf("exitCode=%d, want=%d", got, want)
			}

			if got, want := stderr, ""; got != want {
				t.Errorf("stderr=%q, want=%q", got, want)
			}

			cli.AssertContains(t, stdout, "dtab - delimited table tool")
			cli.AssertContains(t, stdout, "--delimiter")
			cli.AssertContains(t, stdout, "init <file>")
			cli.AssertContains(t, stdout, "write-value <file> <i> <j> <value>")
			cli.AssertContains(t, stdout, "shell <file>")
			cli.AssertContains(t, stdout, "print-config")
		})
	}
}

func Test_No_Command_With_Flags_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, exitCode := c.Run("--cwd", c.Dir)

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stdout, ""; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stderr, "no command provided")
	cli.AssertContains(t, stderr, "dtab - delimited table tool")
	cli.AssertContains(t, stderr, "Commands:")
}

func Test_Unknown_Command_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("frobnicate")

	cli.AssertContains(t, stderr, "unknown command: frobnicate")
	cli.AssertContains(t, stderr, "Commands:")
}

func Test_Invalid_Command_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("values", "t.csv", "0", "--invalid-flag")

	cli.AssertContains(t, stderr, "error:")
	cli.AssertContains(t, stderr, "unknown flag")
	cli.AssertContains(t, stderr, "--invalid-flag")
	cli.AssertContains(t, stderr, "Usage: dtab values <file> <j> [flags]")
	cli.AssertContains(t, stderr, "--start")
}

func Test_Command_Help_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("append", "--help")

	cli.AssertContains(t, stdout, "Usage: dtab append <file> <field>... [flags]")
	cli.AssertContains(t, stdout, "Flags:")
	cli.AssertContains(t, stdout, "--raw")
}

func Test_Verbose_Flag_Logs_Table_Events_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("t.csv", "a,b\n")

	stdout, stderr, exitCode := c.Run("-v", "append", "t.csv", "c", "d")

	if got, want := exitCode, 0; got != want {
		t.Fatalf("exitCode=%d, want=%d\nstderr: %s", got, want, stderr)
	}

	cli.AssertContains(t, stdout, "Appended line 1")
	cli.AssertContains(t, stderr, "table opened")
	cli.AssertContains(t, stderr, "table persisted")
}

func Test_Quiet_By_Default_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("t.csv", "a,b\n")

	_, stderr, exitCode := c.Run("append", "t.csv", "c", "d")

	if got, want := exitCode, 0; got != want {
		t.Fatalf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stderr, ""; got != want {
		t.Errorf("stderr=%q, want=%q", got, want)
	}
}

func Test_Main_Help_Aligns_Command_Descriptions(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("--help")

	column := func(usage, short string) int {
		for line := range strings.SplitSeq(stdout, "\n") {
			if strings.HasPrefix(line, "  "+usage+" ") {
				return strings.Index(line, short)
			}
		}

		t.Fatalf("no help line for %q in:\n%s", usage, stdout)

		return -1
	}

	want := column("init <file>", "Create an empty table file")
	if got := column("write-line <file> <i> <field>... [flags]", "Replace line i with fields"); got != want {
		t.Fatalf("write-line description at column %d, want=%d", got, want)
	}

	if got := column("size <file>", "Print the number of lines"); got != want {
		t.Fatalf("size description at column %d, want=%d", got, want)
	}
}
