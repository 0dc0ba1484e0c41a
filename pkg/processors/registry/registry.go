// Package registry wires the built-in processors into a factory.
package registry

import (
	"github.com/wehubfusion/Prism/pkg/processor"
	"github.com/wehubfusion/Prism/pkg/processors/canvas"
	"github.com/wehubfusion/Prism/pkg/processors/depthoffield"
	"github.com/wehubfusion/Prism/pkg/processors/raycaster"
	"github.com/wehubfusion/Prism/pkg/processors/scriptfilter"
	"github.com/wehubfusion/Prism/pkg/processors/volumesource"
)

// NewFactory creates a factory with every built-in processor registered.
func NewFactory() *processor.DefaultFactory {
	factory := processor.NewDefaultFactory()

	factory.Register(volumesource.TypeName, volumesource.New)
	factory.Register(raycaster.TypeName, raycaster.New)
	factory.Register(depthoffield.TypeName, depthoffield.New)
	factory.Register(scriptfilter.TypeName, scriptfilter.New)
	factory.Register(canvas.TypeName, canvas.New)

	return factory
}
