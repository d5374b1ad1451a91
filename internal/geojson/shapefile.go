package geojson

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
)

// WriteShapefile writes the collection as a point shapefile <name>.shp with
// ADDRESS and NAME string attributes. GeoJSON output is the primary format;
// this export exists for tooling that still wants shapefiles.
func WriteShapefile(c *Collection, name string) error {
	if c == nil {
		return eris.New("geojson: shapefile export on nil collection")
	}

	w, err := shp.Create(name+".shp", shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "geojson: create %s.shp", name)
	}
	defer w.Close()

	w.SetFields([]shp.Field{
		shp.StringField("ADDRESS", 128),
		shp.StringField("NAME", 128),
	})

	for i, f := range c.features {
		w.Write(&shp.Point{
			X: f.Geometry.Coordinates[0],
			Y: f.Geometry.Coordinates[1],
		})
		w.WriteAttribute(i, 0, f.Properties.Address)
		w.WriteAttribute(i, 1, f.Properties.Name)
	}
	return nil
}
