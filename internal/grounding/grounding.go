// Package grounding checks model claims against what the repository
// actually contains and scores how much of the answer survived.
package grounding

import "repobrief/internal/types"

// Validate filters claims against the extracted evidence, the repository tree
// and the text that was shown to the model. It never adds technologies or
// paths that are absent from its inputs, and running it again on its own
// output returns the same lists.
func Validate(claims types.Claims, evidence types.TechnologyEvidence, tree types.RepoTree, contextText string) types.ValidationResult {
	techs, techClaimed := validateTechnologies(claims.Technologies, evidence, contextText)
	structure, verified, structClaimed := groundStructure(claims.Structure, newPathChecker(tree, evidence))

	return types.ValidationResult{
		Technologies:  techs,
		Structure:     structure,
		EvidenceScore: score(len(techs)+verified, techClaimed+structClaimed),
	}
}

func score(validated, claimed int) float64 {
	if claimed == 0 {
		return 1
	}
	s := float64(validated) / float64(claimed)
	if s > 1 {
		return 1
	}
	return s
}
