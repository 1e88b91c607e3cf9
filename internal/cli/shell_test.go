package cli_test

import (
	"strings"
	"testing"

	"github.com/calvinalkan/dtab/internal/cli"
)

func Test_Shell_Runs_Commands_On_One_Table_When_Stdin_Is_Not_Terminal(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("people.csv", peopleCSV)

	script := strings.Join([]string{
		"# comments and blank lines are skipped",
		"",
		"size",
		"append Carol 41",
		"write-value 1 0 'Alice Smith'",
		"value 1 0",
		"delete-line 2",
		"values 0 --start 1",
		"exit",
		"size",
	}, "\n")

	stdout, stderr, code := c.RunWithInput(script, "shell", "people.csv")
	if code != 0 {
		t.Fatalf("exitCode=%d, stderr: %s", code, stderr)
	}

	want := "3\n" +
		"Appended line 3\n" +
		"Wrote value 1 0\n" +
		"Alice Smith\n" +
		"Deleted line 2\n" +
		"Alice Smith\nCarol\n"

	if stdout != want {
		t.Fatalf("stdout=%q, want=%q", stdout, want)
	}

	if got, want := c.ReadFile("people.csv"), "name,age\nAlice Smith,30\nCarol,41\n"; got != want {
		t.Fatalf("file=%q, want=%q", got, want)
	}
}

func Test_Shell_Keeps_Going_And_Exits_Non_Zero_When_Command_Fails(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("people.csv", peopleCSV)

	script := "line 9\nnope\nvalue 0 x\nline 'unterminated\nline 0\n"

	stdout, stderr, code := c.RunWithInput(script, "shell", "people.csv")
	if code != 1 {
		t.Fatalf("exitCode=%d, want=1, stderr: %s", code, stderr)
	}

	if got, want := stdout, "name,age\n"; got != want {
		t.Fatalf("stdout=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stderr, "line index out of range")
	cli.AssertContains(t, stderr, "unknown command: nope")
	cli.AssertContains(t, stderr, "invalid index")
	cli.AssertContains(t, stderr, "unterminated quote")
	cli.AssertContains(t, stderr, "error: 4 shell commands failed")
}

func Test_Shell_Exits_Non_Zero_When_Command_Fails_Before_Exit(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("people.csv", peopleCSV)

	_, stderr, code := c.RunWithInput("append Carol 41\ndelete-line 9\nexit\n", "shell", "people.csv")
	if code != 1 {
		t.Fatalf("exitCode=%d, want=1", code)
	}

	cli.AssertContains(t, stderr, "error: 1 shell commands failed")

	if got, want := c.ReadFile("people.csv"), peopleCSV+"Carol,41\n"; got != want {
		t.Fatalf("file=%q, want=%q", got, want)
	}
}

func Test_Shell_Keeps_Double_Quotes_In_Arguments(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("people.csv", peopleCSV)

	script := `append "Doe, Jane" 52` + "\nvalue 3 0\n"

	stdout, stderr, code := c.RunWithInput(script, "shell", "people.csv")
	if code != 0 {
		t.Fatalf("exitCode=%d, stderr: %s", code, stderr)
	}

	cli.AssertContains(t, stdout, "\"Doe, Jane\"\n")

	if got, want := c.ReadFile("people.csv"), peopleCSV+"\"Doe, Jane\",52\n"; got != want {
		t.Fatalf("file=%q, want=%q", got, want)
	}
}

func Test_Shell_Prints_Help_When_Asked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("people.csv", peopleCSV)

	stdout, _, code := c.RunWithInput("help\nvalues --help\n", "shell", "people.csv")
	if code != 0 {
		t.Fatalf("exitCode=%d", code)
	}

	cli.AssertContains(t, stdout, "Commands:")
	cli.AssertContains(t, stdout, "write-value <i> <j> <value>")
	cli.AssertContains(t, stdout, "exit / quit / q")
	cli.AssertContains(t, stdout, "Usage: values <j> [flags]")
	cli.AssertContains(t, stdout, "--start")
}

func Test_Shell_Commands_Do_Not_Read_Shell_Input(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("people.csv", peopleCSV)

	stdout, stderr, code := c.RunWithInput("append-lines\nsize\n", "shell", "people.csv")
	if code != 1 {
		t.Fatalf("exitCode=%d, want=1", code)
	}

	cli.AssertContains(t, stderr, "no input lines")

	if got, want := stdout, "3\n"; got != want {
		t.Fatalf("stdout=%q, want=%q", got, want)
	}
}

func Test_Shell_Fails_When_Table_Missing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stderr := c.MustFail("shell", "nope.csv")
	cli.AssertContains(t, stderr, "table file not found")
}
