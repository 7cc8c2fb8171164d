package builtin

import "github.com/stagepath/stagepath/internal/stage"

// trim clips low-quality read ends. Callable as e.g. "trim", "trimQ10",
// "trimQ10L50".
func trim() *stage.Stage {
	return &stage.Stage{
		Name: "trim",
		Doc:  "trim reads by quality and length",
		Params: []*stage.ParamSpec{
			{Key: "Q", Name: "minqual", Type: stage.ParamInt, Default: "20"},
			{Key: "L", Name: "minlen", Type: stage.ParamInt, Default: "20"},
		},
		Inputs:  []string{"{prev}/{target}.fq.gz"},
		Outputs: []string{"{this}/{target}.fq.gz"},
	}
}

// dedup removes duplicate reads.
func dedup() *stage.Stage {
	return &stage.Stage{
		Name:    "dedup",
		Doc:     "remove duplicate reads",
		Inputs:  []string{"{prev}/{target}.fq.gz"},
		Outputs: []string{"{this}/{target}.fq.gz"},
	}
}

// filter partitions reads against the preceding reference stage. The kept
// fraction lands in the filter directory, the discarded fraction in the
// sibling remove directory, so the same decision point serves both
// "filter_x" style and "remove_x" style chains.
func filter() *stage.Stage {
	return &stage.Stage{
		Name:    "filter",
		AltName: "remove",
		Doc:     "split reads into matching and non-matching fractions",
		Params: []*stage.ParamSpec{
			{Key: "E", Name: "engine", Type: stage.ParamChoice,
				Choices: []string{"bbmap", "bowtie"}, Default: "bbmap"},
		},
		Inputs: []string{"{prev}/{target}.fq.gz"},
		Outputs: []string{
			"{this}/{target}.fq.gz",
			"{that}/{target}.fq.gz",
		},
	}
}

// correct error-corrects reads.
func correct() *stage.Stage {
	return &stage.Stage{
		Name: "correct",
		Doc:  "error-correct reads",
		Params: []*stage.ParamSpec{
			{Key: "K", Name: "kmer", Type: stage.ParamInt, Default: "31"},
		},
		Inputs:  []string{"{prev}/{target}.fq.gz"},
		Outputs: []string{"{this}/{target}.fq.gz"},
	}
}
