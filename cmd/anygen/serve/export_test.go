package servecmder

var PointsAt = pointsAt
