package builtin

import "github.com/stagepath/stagepath/internal/stage"

// assemble builds contigs from reads.
func assemble() *stage.Stage {
	return &stage.Stage{
		Name:    "assemble",
		Doc:     "assemble reads into contigs",
		Inputs:  []string{"{prev}/{target}.fq.gz"},
		Outputs: []string{"{this}/{target}.fasta"},
	}
}

// index builds a mapping index over the previous stage's sequences.
func index() *stage.Stage {
	return &stage.Stage{
		Name:    "index",
		Doc:     "index sequences for mapping",
		Inputs:  []string{"{prev}/{target}.fasta"},
		Outputs: []string{"{this}/{target}.idx"},
	}
}

// mapReads aligns reads against the indexed sequences. The fan-in form of
// its input template pulls every target of the root through {targets}.
func mapReads() *stage.Stage {
	return &stage.Stage{
		Name: "map",
		Doc:  "map reads onto indexed sequences",
		Params: []*stage.ParamSpec{
			{Key: "E", Name: "engine", Type: stage.ParamChoice,
				Choices: []string{"bbmap", "bowtie", "minimap"}, Default: "bbmap"},
			{Key: "Exact", Name: "exact", Type: stage.ParamFlag, On: "exact"},
		},
		Inputs:  []string{"{prev}/{target}.idx", "{dir.tmp}/{target}.fq.gz"},
		Outputs: []string{"{this}/{target}.bam"},
	}
}

// coverage summarizes mapped depth across all targets of the root.
func coverage() *stage.Stage {
	return &stage.Stage{
		Name:    "coverage",
		Doc:     "aggregate mapping depth over all targets",
		Inputs:  []string{"{prev}/{targets}.bam"},
		Outputs: []string{"{this}/coverage.tsv"},
	}
}
