package mem_test

import (
	"strings"
	"testing"

	"github.com/halvard/machina/internal/mem"
	"github.com/halvard/machina/internal/word"
)

func TestReadWrite(t *testing.T) {
	m, err := mem.New(21)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Write(5, 42); err != nil {
		t.Fatal(err)
	}

	got, err := m.Read(5)
	if err != nil {
		t.Fatal(err)
	}

	if got != 42 {
		t.Fatalf("want 42, got %s", got)
	}
}

func TestBoundary(t *testing.T) {
	m, err := mem.New(21)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Read(20); err != nil {
		t.Fatalf("read at last valid address should succeed: %s", err)
	}

	if _, err := m.Read(21); err == nil {
		t.Fatal("read past end of memory should fail")
	}

	if _, err := m.Read(-1); err == nil {
		t.Fatal("read at negative address should fail")
	}
}

func TestNewRejectsSmallMemory(t *testing.T) {
	if _, err := mem.New(20); err == nil {
		t.Fatal("expected error for memory below minimum size")
	}
}

func TestLoadDataSection(t *testing.T) {
	image := `
Begin Data Section
# a comment
0 0
100, 42   # trailing comment
101 -7
End Data Section
`
	m, err := mem.New(1000)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.LoadDataSection(strings.NewReader(image)); err != nil {
		t.Fatal(err)
	}

	cases := map[word.Word]word.Word{
		0:   0,
		100: 42,
		101: -7,
	}

	for addr, want := range cases {
		got, err := m.Read(addr)
		if err != nil {
			t.Fatal(err)
		}

		if got != want {
			t.Fatalf("mem[%s] = %s, want %s", addr, got, want)
		}
	}
}

func TestLoadDataSectionOptional(t *testing.T) {
	m, err := mem.New(21)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.LoadDataSection(strings.NewReader("Begin Instruction Section\n0 HLT\nEnd Instruction Section\n")); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDataSectionUnterminated(t *testing.T) {
	m, err := mem.New(21)
	if err != nil {
		t.Fatal(err)
	}

	err = m.LoadDataSection(strings.NewReader("Begin Data Section\n0 0\n"))
	if err == nil {
		t.Fatal("expected error for unterminated data section")
	}
}
