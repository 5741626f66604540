// Package sample holds the blog schema used by the demo server and the
// detector scenarios.
package sample

// Category has many posts and entries.
type Category struct {
	ID      uint `gorm:"primaryKey"`
	Name    string
	Posts   []Post
	Entries []Entry
}

// Post belongs to a category and a writer and has many comments.
type Post struct {
	ID         uint `gorm:"primaryKey"`
	Name       string
	CategoryID uint
	Category   *Category
	WriterID   uint
	Writer     *Writer
	Comments   []Comment
}

// Comment belongs to a post and to the writer who authored it.
type Comment struct {
	ID       uint `gorm:"primaryKey"`
	Name     string
	PostID   uint
	Post     *Post
	AuthorID uint
	Author   *Writer `gorm:"foreignKey:AuthorID"`
}

// Entry belongs to a category.
type Entry struct {
	ID         uint `gorm:"primaryKey"`
	Name       string
	CategoryID uint
	Category   *Category
}

// Writer belongs to a newspaper and has many posts.
type Writer struct {
	ID          uint `gorm:"primaryKey"`
	Name        string
	NewspaperID uint
	Newspaper   *Newspaper
	Posts       []Post
}

// Newspaper has many writers.
type Newspaper struct {
	ID      uint `gorm:"primaryKey"`
	Name    string
	Writers []Writer
}

// Page is authored by a writer.
type Page struct {
	ID       uint `gorm:"primaryKey"`
	Name     string
	AuthorID uint
	Author   *Writer `gorm:"foreignKey:AuthorID"`
}

// Student and Teacher are joined many to many.
type Student struct {
	ID       uint `gorm:"primaryKey"`
	Name     string
	Teachers []Teacher `gorm:"many2many:students_teachers;"`
}

type Teacher struct {
	ID       uint `gorm:"primaryKey"`
	Name     string
	Students []Student `gorm:"many2many:students_teachers;"`
}

// Firm reaches its clients through the relationships table.
type Firm struct {
	ID      uint `gorm:"primaryKey"`
	Name    string
	Clients []Client `gorm:"many2many:relationships;"`
}

type Client struct {
	ID    uint `gorm:"primaryKey"`
	Name  string
	Firms []Firm `gorm:"many2many:relationships;"`
}

// Company has one address.
type Company struct {
	ID      uint `gorm:"primaryKey"`
	Name    string
	Address *Address
}

type Address struct {
	ID        uint `gorm:"primaryKey"`
	Name      string
	CompanyID uint
}

// Models lists every table for AutoMigrate, parents first.
func Models() []any {
	return []any{
		&Newspaper{}, &Writer{}, &Category{}, &Post{}, &Comment{}, &Entry{},
		&Page{}, &Student{}, &Teacher{}, &Firm{}, &Client{}, &Company{}, &Address{},
	}
}
