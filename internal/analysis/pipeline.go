// SPDX-License-Identifier: MIT
package analysis

import "sync/atomic"

// Pipeline chains the analyzer and the mapper: one block in, one smoothed
// coefficient vector out.
type Pipeline struct {
	analyzer *Analyzer
	mapper   *Mapper
	rejected atomic.Uint64
}

// NewPipeline pairs an analyzer with a mapper and calibrates the mapper to
// the analyzer's window and bin grid. Both are owned by the pipeline's
// caller goroutine afterwards.
func NewPipeline(analyzer *Analyzer, mapper *Mapper) *Pipeline {
	mapper.Calibrate(analyzer)
	return &Pipeline{analyzer: analyzer, mapper: mapper}
}

// Process analyses block and folds it into the coefficients. When the block
// violates the analyzer contract it is dropped and the previous coefficients
// are returned unchanged along with the error.
func (p *Pipeline) Process(block []float64) ([]float64, error) {
	spectrum, err := p.analyzer.Analyze(block)
	if err != nil {
		p.rejected.Add(1)
		return p.mapper.Coefficients(), err
	}
	return p.mapper.Update(spectrum), nil
}

// Silence advances the coefficients one block with no excitation.
func (p *Pipeline) Silence() []float64 {
	return p.mapper.Decay()
}

// Rejected returns how many blocks Process has dropped.
func (p *Pipeline) Rejected() uint64 {
	return p.rejected.Load()
}

// Analyzer returns the pipeline's analyzer.
func (p *Pipeline) Analyzer() *Analyzer {
	return p.analyzer
}

// Mapper returns the pipeline's mapper.
func (p *Pipeline) Mapper() *Mapper {
	return p.mapper
}
